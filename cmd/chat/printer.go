package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
)

type messageSource interface {
	Messages() []domain.Message
	IsMine(msg domain.Message) bool
}

// printer writes each message of a feed once, in feed order.
type printer struct {
	mu        sync.Mutex
	w         io.Writer
	src       messageSource
	otherName string
	printed   map[uuid.UUID]struct{}
	announced bool
}

func newPrinter(w io.Writer, src messageSource, otherName string) *printer {
	return &printer{w: w, src: src, otherName: otherName, printed: make(map[uuid.UUID]struct{})}
}

func (p *printer) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := p.src.Messages()
	if len(msgs) == 0 {
		if !p.announced {
			fmt.Fprintln(p.w, "No messages yet.")
			p.announced = true
		}
		return
	}

	for _, msg := range msgs {
		if _, ok := p.printed[msg.ID]; ok {
			continue
		}
		p.printed[msg.ID] = struct{}{}
		fmt.Fprintln(p.w, p.format(msg))
	}
}

func (p *printer) format(msg domain.Message) string {
	who := p.otherName
	if p.src.IsMine(msg) {
		who = "You"
	}
	return fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Local().Format("Jan 2 15:04"), who, msg.Content)
}
