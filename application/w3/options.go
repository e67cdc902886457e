package w3

import (
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	// Agent is sent as User-Agent.
	Agent string `validate:"required,max=256"`
	// BufferSize is the chunk size of FTP transfers and request bodies.
	BufferSize int `validate:"gte=1"`
	// Boundary separates multipart parts. A random one is made when empty.
	Boundary string `validate:"omitempty,max=70,printascii,excludesall=\""`

	// RequestRate limits issued requests per second. Zero means no limit.
	RequestRate  float64 `validate:"gte=0"`
	RequestBurst int     `validate:"gte=0"`
	// TransferRate limits FTP transfers in bytes per second. Zero means no limit.
	TransferRate int `validate:"gte=0"`

	// CompletionTimeout bounds every wait of an AsyncClient. WaitForever
	// waits without bound.
	CompletionTimeout time.Duration

	// SkipProbe skips the reachability probe on connect.
	SkipProbe bool

	TracerProvider trace.TracerProvider `validate:"-"`
}

func DefaultOptions() Options {
	return Options{
		Agent:             "W3Client",
		BufferSize:        4096,
		CompletionTimeout: WaitForever,
	}
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("w3: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// FieldError is one option that failed validation.
type FieldError struct {
	Field string
	Err   string
}

type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Validate checks opts against its declared tags.
func (opts Options) Validate() error {
	if err := validate.Struct(opts); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		fields := make(FieldErrors, 0, len(verrors))
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Field(),
				Err:   verror.Translate(translator),
			})
		}
		return &OpError{Op: "validate options", Kind: ErrInvalidOptions, Err: fields}
	}

	return nil
}

func newBoundary() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "w3client-" + strings.ReplaceAll(id.String(), "-", "")
}
