package vedtak

import "fmt"

type VedtakError struct {
	StatusCode int
	Message    string
}

func (e *VedtakError) Error() string {
	return fmt.Sprintf("vedtak error: %s (status: %d)", e.Message, e.StatusCode)
}
