package middleware

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// customValidations are shared by the standalone validator and gin's binding engine
var customValidations = map[string]validator.Func{
	"qr_code":        validateQRCode,
	"quality_grade":  validateQualityGrade,
	"transport_mode": validateTransportMode,
	"batch_status":   validateBatchStatus,
	"safe_string":    validateSafeString,
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func register(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(jsonTagName)
}

// InitValidator initializes the validator with custom validators
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		// DTOs carry gin binding tags; GetValidator reads the same ones
		validate = validator.New()
		validate.SetTagName("binding")
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})

	return validate
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

// Custom validators

var (
	// Shape only; the handler parses the code fully and checks the date segment
	qrCodeRegex     = regexp.MustCompile(`(?i)^\s*((CR|BT)-\d{6}-\d{3}|ASIKH-(CRATE|BATCH)-[0-9a-f-]{36})\s*$`)
	safeStringRegex = regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F\x7F]*$`)

	qualityGrades  = map[string]bool{"A": true, "B": true, "C": true, "reject": true}
	transportModes = map[string]bool{"truck": true, "van": true, "bicycle": true, "motorbike": true, "other": true}
	batchStatuses  = map[string]bool{
		"open": true, "in_transit": true, "arrived": true,
		"delivered": true, "closed": true, "cancelled": true,
	}
)

func validateQRCode(fl validator.FieldLevel) bool {
	return qrCodeRegex.MatchString(fl.Field().String())
}

func validateQualityGrade(fl validator.FieldLevel) bool {
	return qualityGrades[fl.Field().String()]
}

func validateTransportMode(fl validator.FieldLevel) bool {
	return transportModes[fl.Field().String()]
}

func validateBatchStatus(fl validator.FieldLevel) bool {
	return batchStatuses[fl.Field().String()]
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			fields[field] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "url":
		return "must be a valid URL"
	case "qr_code":
		return "must be a crate or batch code (CR-MMDDYY-NNN, BT-MMDDYY-NNN or ASIKH-CRATE-<uuid>)"
	case "quality_grade":
		return "must be one of: A, B, C, reject"
	case "transport_mode":
		return "must be one of: truck, van, bicycle, motorbike, other"
	case "batch_status":
		return "must be one of: open, in_transit, arrived, delivered, closed, cancelled"
	case "safe_string":
		return "contains control characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if stderrors.As(err, &validationErrors) {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// SanitizeString removes potentially dangerous characters from a string
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Trim whitespace
	s = strings.TrimSpace(s)

	return s
}

// InputSanitizer middleware sanitizes string inputs
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Sanitize query parameters
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = SanitizeString(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()

		c.Next()
	}
}

// ContentType middleware ensures proper content type for POST/PUT/PATCH
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" || !strings.HasPrefix(contentType, "application/json") {
				// Allow empty body for some endpoints
				if c.Request.ContentLength > 0 {
					AbortWithAppError(c, &errors.AppError{
						Code:       "INVALID_CONTENT_TYPE",
						Message:    "Content-Type must be application/json",
						HTTPStatus: 415,
					})
					return
				}
			}
		}
		c.Next()
	}
}
