//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../../../mocks/mock_logic_ports.go -package=mocks
package v1

import (
	"context"

	"github.com/duynhne/chat-service/internal/core/domain"
)

// Presence is the part of the presence registry the REST surface needs.
type Presence interface {
	ListActiveUsers(ctx context.Context) ([]domain.User, error)
	AddUser(ctx context.Context, userID int64) error
}
