package errors_test

import (
	"fmt"

	"github.com/velalang/bvc/errors"
)

var ErrInvalidKey = errors.New("invalid key")

func demoWrap() error {
	sig, err := sign()
	if err != nil {
		return errors.Wrap(err, "signing")
	}
	fmt.Println(sig)
	return nil
}

func demoWrapReturn() ([]byte, error) {
	sig, err := sign()
	return sig, errors.Wrap(err, "signing")
}

func sign() ([]byte, error) { return nil, nil }
