//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../../mocks/mock_presence_ports.go -package=mocks
package presence

import "context"

// Registry is the shared presence state the coordinator drives.
type Registry interface {
	AddUser(ctx context.Context, userID int64) error
	RemoveUser(ctx context.Context, userID int64) error
	RefreshTimeout(ctx context.Context, userID int64) error
}
