package ingest

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"assetdrop/internal/config"
	models "assetdrop/internal/domain/models/ingest"
)

var noSlashes = regexp.MustCompile(`^[^/]*$`)

// rule errors carry the node error code as their ozzo code
var (
	errRequired     = validation.NewError(string(models.ErrCodeRequired), "is required")
	errTooLong      = validation.NewError(string(models.ErrCodeTooLong), "is too long")
	errInvalidChars = validation.NewError(string(models.ErrCodeInvalidChars), "cannot contain slashes")
)

// Validator applies per-kind field rules and annotates nodes with error codes.
// Running it twice on an unchanged batch yields identical errors.
type Validator struct{}

// NewValidator creates a node validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBatch re-validates every node and reports whether the batch is submit-ready.
func (v *Validator) ValidateBatch(batch *models.Batch) bool {
	ready := true
	for _, n := range batch.Nodes() {
		if !v.ValidateNode(n) {
			ready = false
		}
	}
	return ready
}

// ValidateNode re-validates every field of a node and reports whether it is clean.
func (v *Validator) ValidateNode(n *models.Node) bool {
	v.ValidateField(n, models.FieldName)
	v.ValidateField(n, models.FieldLink)
	return !n.HasErrors()
}

// ValidateField raises or clears one field's error without touching the others.
func (v *Validator) ValidateField(n *models.Node, field models.Field) {
	var err error
	switch field {
	case models.FieldName:
		err = validation.Validate(strings.TrimSpace(n.Name),
			validation.Required.ErrorObject(errRequired),
			validation.RuneLength(0, config.MaxNodeNameLength).ErrorObject(errTooLong),
			validation.Match(noSlashes).ErrorObject(errInvalidChars),
		)
	case models.FieldLink:
		rules := []validation.Rule{
			validation.RuneLength(0, config.MaxLinkLength).ErrorObject(errTooLong),
		}
		if n.IsFolder() {
			rules = append([]validation.Rule{validation.Required.ErrorObject(errRequired)}, rules...)
		}
		err = validation.Validate(strings.TrimSpace(n.Link), rules...)
	default:
		return
	}

	if err == nil {
		n.ClearError(field)
		return
	}
	n.SetError(field, codeOf(err))
}

// Ready reports whether no node in the batch carries an error.
func Ready(batch *models.Batch) bool {
	for _, n := range batch.Nodes() {
		if n.HasErrors() {
			return false
		}
	}
	return true
}

func codeOf(err error) models.ErrorCode {
	var verr validation.Error
	if errors.As(err, &verr) {
		return models.ErrorCode(verr.Code())
	}
	return models.ErrCodeRequired
}
