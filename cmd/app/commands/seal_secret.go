package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/allisson/checkout/internal/keeper"
)

// RunSealSecret encrypts value with the keeper and prints the sealed form to
// use in place of the plaintext in the environment.
func RunSealSecret(ctx context.Context, encrypter keeper.Encrypter, writer io.Writer, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value must not be empty")
	}

	sealed, err := keeper.Seal(ctx, encrypter, value)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(writer, sealed)
	return err
}
