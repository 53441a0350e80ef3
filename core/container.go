package core

import "context"

// Container owns a memory configuration. Containers are managed by an
// external collaborator; the pipeline only reads them at ingestion entry.
type Container struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Owner         string              `json:"owner"`
	Configuration MemoryConfiguration `json:"configuration"`
}

// ContainerStore resolves containers by id.
type ContainerStore interface {
	GetContainer(ctx context.Context, id string) (*Container, error)
}

// AccessChecker verifies that a caller may write to a container. Consumed at
// orchestration entry only; the pipeline itself performs no further checks.
type AccessChecker interface {
	CheckAccess(ctx context.Context, caller string, container *Container) (bool, error)
}
