package manager

import (
	"fmt"

	"github.com/loganmanery/passvault/pkg/models"
)

// Validate checks that account can be saved: title, username and password
// must all be non-empty.
func Validate(account *models.Account) error {
	switch {
	case account == nil:
		return fmt.Errorf("%w: nil account", ErrValidation)
	case account.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case account.Username == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case account.Password == "":
		return fmt.Errorf("%w: password is required", ErrValidation)
	case account.ID < 0:
		return fmt.Errorf("%w: negative id %d", ErrValidation, account.ID)
	default:
		return nil
	}
}
