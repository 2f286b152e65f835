package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cotracker/internal/checkouts"
)

var registerOnce sync.Once

// registerValidators makes gin's validator report fields by their form names.
// Airstrip idents are only checked for presence here; whether they name a
// stored airstrip is decided by the checkouts service.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

type attachmentEditForm struct {
	Airstrips []string `form:"airstrip" binding:"dive,required"`
}

type checkoutEditForm struct {
	Pilot         string   `form:"pilot" binding:"required,max=150"`
	Airstrip      string   `form:"airstrip" binding:"required"`
	AircraftTypes []string `form:"aircraft_type" binding:"required,dive,required,max=100"`
	Action        string   `form:"action"`
}

type checkoutFilterForm struct {
	Status       string `form:"checkout_status" binding:"required,oneof=completed not_completed"`
	Pilot        string `form:"pilot" binding:"omitempty,max=150"`
	Airstrip     string `form:"airstrip"`
	AircraftType string `form:"aircraft_type" binding:"omitempty,max=100"`
	Base         string `form:"base"`
}

// bind decodes the request form into dst, turning validator failures into
// per-field validation errors
func bind(c *gin.Context, dst any) error {
	err := c.ShouldBind(dst)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return &checkouts.ValidationError{Fields: map[string]string{"__all__": err.Error()}}
	}

	verr := &checkouts.ValidationError{Fields: make(map[string]string, len(fieldErrors))}
	for _, fe := range fieldErrors {
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		if _, exists := verr.Fields[field]; !exists {
			verr.Fields[field] = fieldProblem(fe)
		}
	}
	return verr
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "oneof":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	}
	return "Enter a valid value."
}
