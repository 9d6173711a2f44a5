package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
)

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	enTranslator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, enTranslator); err != nil {
		panic(fmt.Errorf("translator was not registered: %w", err))
	}

	if err := validate.RegisterValidation("listen_addr", isListenAddr); err != nil {
		panic(fmt.Errorf("listen_addr validation was not registered: %w", err))
	}
	if err := validate.RegisterTranslation("listen_addr", enTranslator,
		func(ut ut.Translator) error {
			return ut.Add("listen_addr", "{0} must be a host:port listen address", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("listen_addr", fe.Field())
			return t
		},
	); err != nil {
		panic(fmt.Errorf("listen_addr translation was not registered: %w", err))
	}

	// Report fields by their YAML key.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return validate, enTranslator
}

// isListenAddr accepts "host:port" and ":port" with ports 0-65535, port 0
// asking the OS for a free port.
func isListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return false
	}
	return !strings.ContainsAny(host, " /?#")
}

func validateStruct(cfg *Config) error {
	validate, translator := newValidator()

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, fieldPath(e.Namespace()), e.Translate(translator)))
	}
	return errors.Join(errs...)
}

// fieldPath drops the root struct name, "Config.proxy[0].target" becomes "proxy[0].target".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
