package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/vedran77/partsmarket/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	minPasswordLen = 6
	maxMessageLen  = 4000
)

func ValidateRegister(email, name, password, accountType string, businessID, companyName *string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	// Name
	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Name is required")
	} else if len(name) > 100 {
		errs.Add("name", "Name is too long")
	}

	// Password
	if len(password) < minPasswordLen {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}

	validateAccount(accountType, businessID, companyName, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateProfile checks a partial profile update. Nil fields are unchanged
// and not validated.
func ValidateProfile(name, accountType, businessID, companyName *string) ValidationErrors {
	errs := make(ValidationErrors)

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			errs.Add("name", "Name cannot be empty")
		} else if len(n) > 100 {
			errs.Add("name", "Name is too long")
		}
	}

	if accountType != nil {
		validateAccount(*accountType, businessID, companyName, errs)
	}

	return errs
}

func ValidateMessage(content string) ValidationErrors {
	errs := make(ValidationErrors)

	if len(content) > maxMessageLen {
		errs.Add("content", "Message is too long")
	}

	return errs
}

func ValidateVehicle(v *domain.Vehicle) ValidationErrors {
	errs := make(ValidationErrors)

	checkEnum(errs, "type", v.Type, domain.VehicleTypes, true)
	if strings.TrimSpace(v.Brand) == "" {
		errs.Add("brand", "Brand is required")
	}
	if strings.TrimSpace(v.Model) == "" {
		errs.Add("model", "Model is required")
	}
	if maxYear := time.Now().Year() + 1; v.Year < 1900 || v.Year > maxYear {
		errs.Add("year", fmt.Sprintf("Year must be between 1900 and %d", maxYear))
	}
	if v.MileageKm < 0 {
		errs.Add("mileage_km", "Mileage cannot be negative")
	}
	checkEnum(errs, "fuel_type", v.FuelType, domain.FuelTypes, false)
	checkEnum(errs, "drive_type", v.DriveType, domain.DriveTypes, false)
	checkEnum(errs, "transmission", v.Transmission, domain.Transmissions, false)
	if v.SeatsNumber < 0 {
		errs.Add("seats_number", "Seats cannot be negative")
	}
	if v.DoorsNumber < 0 {
		errs.Add("doors_number", "Doors cannot be negative")
	}
	checkImageCount(errs, v.ImageCount, 1)

	return errs
}

func ValidatePart(p *domain.Part) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(p.Name) == "" {
		errs.Add("name", "Part name is required")
	} else if len(p.Name) > 200 {
		errs.Add("name", "Part name is too long")
	}
	checkImageCount(errs, p.ImageCount, domain.MaxImages)

	return errs
}

func ValidateWheel(w *domain.Wheel) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(w.RimSize) == "" {
		errs.Add("rim_size", "Rim size is required")
	}
	if w.TireWidth < 0 || w.TireProfile < 0 || w.TireSize < 0 {
		errs.Add("tire", "Tire dimensions cannot be negative")
	}
	checkImageCount(errs, w.ImageCount, domain.MaxImages)

	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validateAccount(accountType string, businessID, companyName *string, errs ValidationErrors) {
	switch accountType {
	case "", domain.AccountTypePrivate:
	case domain.AccountTypeBusiness:
		if businessID == nil || strings.TrimSpace(*businessID) == "" {
			errs.Add("business_id", "Business ID is required for business accounts")
		}
		if companyName == nil || strings.TrimSpace(*companyName) == "" {
			errs.Add("company_name", "Company name is required for business accounts")
		}
	default:
		errs.Add("account_type", "Account type must be private or business")
	}
}

func checkEnum(errs ValidationErrors, field, value string, allowed []string, required bool) {
	if value == "" {
		if required {
			errs.Add(field, "Value is required")
		}
		return
	}
	if !slices.Contains(allowed, value) {
		errs.Add(field, "Must be one of "+strings.Join(allowed, ", "))
	}
}

func checkImageCount(errs ValidationErrors, count, max int) {
	if count < 0 || count > max {
		errs.Add("image_count", fmt.Sprintf("Image count must be between 0 and %d", max))
	}
}
