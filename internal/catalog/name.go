package catalog

import (
	"strings"
	"unicode"

	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"golang.org/x/text/cases"
)

const maxNameLength = 120

var folder = cases.Fold()

// NameKey is the case-folded, whitespace-collapsed form used to match product names.
func NameKey(name string) string {
	return folder.String(strings.Join(strings.Fields(name), " "))
}

// CleanName collapses runs of whitespace in a display name.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateName rejects empty, overlong and Cyrillic product names. Labels are
// printed in Latin script so receipts stay readable on every printer font.
func ValidateName(name string) error {
	name = CleanName(name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is too long").
			WithDetails(map[string]any{"max_length": maxNameLength})
	}
	for _, r := range name {
		if unicode.Is(unicode.Cyrillic, r) {
			return pkgerrors.New(pkgerrors.CodeValidation, "product name must use Latin letters")
		}
	}
	return nil
}
