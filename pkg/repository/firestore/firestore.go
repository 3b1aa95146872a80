package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
)

// DefaultUsersCollection is the collection name used when no table name is configured
const DefaultUsersCollection = "users"

type Firestore struct {
	client       *firestore.Client
	user         *userRepository
	workspaceBot *workspaceBotRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name with "<prefix>_"
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.user.collectionPrefix = prefix
		f.workspaceBot.collectionPrefix = prefix
	}
}

// WithUsersCollection overrides the name of the users collection
func WithUsersCollection(name string) Option {
	return func(f *Firestore) {
		if name != "" {
			f.user.collectionName = name
		}
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:       client,
		user:         newUserRepository(client),
		workspaceBot: newWorkspaceBotRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) WorkspaceBot() interfaces.WorkspaceBotRepository {
	return f.workspaceBot
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
