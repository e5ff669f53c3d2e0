package merchant

import "errors"

var (
	errEmptyURL = errors.New("url is empty")
	errScheme   = errors.New("scheme must be http or https")
	errNoHost   = errors.New("missing host")
)
