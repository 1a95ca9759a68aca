package export

import (
	"context"

	"orderdesk/internal/model"
)

// PDFRenderer turns one order into a paginated document. Rendering is an
// external collaborator; the order handler answers 501 when none is wired.
type PDFRenderer interface {
	Render(ctx context.Context, order model.OrderWithID) ([]byte, error)
}
