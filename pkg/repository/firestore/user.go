package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
	collectionName   string
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{
		client:         client,
		collectionName: DefaultUsersCollection,
	}
}

// userDoc is the Firestore persistence model
type userDoc struct {
	TeamID                 string     `firestore:"team_id"`
	UserID                 string     `firestore:"user_id"`
	AccessToken            string     `firestore:"access_token"`
	LastAvatarChange       *time.Time `firestore:"last_avatar_change"`
	UpdateFrequencySeconds int        `firestore:"update_frequency_seconds"`
	Valid                  bool       `firestore:"valid"`
	CreatedAt              time.Time  `firestore:"created_at"`
	UpdatedAt              time.Time  `firestore:"updated_at"`
}

func (r *userRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, r.collectionName))
}

func toUserDoc(user *model.User) *userDoc {
	return &userDoc{
		TeamID:                 string(user.TeamID),
		UserID:                 string(user.UserID),
		AccessToken:            string(user.AccessToken),
		LastAvatarChange:       user.LastAvatarChange,
		UpdateFrequencySeconds: user.UpdateFrequencySeconds,
		Valid:                  user.Valid,
		CreatedAt:              user.CreatedAt,
		UpdatedAt:              user.UpdatedAt,
	}
}

func fromUserDoc(doc *userDoc) *model.User {
	return &model.User{
		TeamID:                 model.SlackTeamID(doc.TeamID),
		UserID:                 model.SlackUserID(doc.UserID),
		AccessToken:            types.AccessToken(doc.AccessToken),
		LastAvatarChange:       doc.LastAvatarChange,
		UpdateFrequencySeconds: doc.UpdateFrequencySeconds,
		Valid:                  doc.Valid,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
}

func (r *userRepository) collect(iter *firestore.DocumentIterator) ([]*model.User, error) {
	defer iter.Stop()

	var users []*model.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate users")
		}

		var d userDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("docID", doc.Ref.ID))
		}
		users = append(users, fromUserDoc(&d))
	}

	return users, nil
}

// ListValid retrieves users with valid == true. Requires the composite index created by `migrate`.
func (r *userRepository) ListValid(ctx context.Context) ([]*model.User, error) {
	iter := r.collection().
		Where("valid", "==", true).
		OrderBy("team_id", firestore.Asc).
		Documents(ctx)
	return r.collect(iter)
}

// ListAll retrieves every user
func (r *userRepository) ListAll(ctx context.Context) ([]*model.User, error) {
	return r.collect(r.collection().Documents(ctx))
}

// Get retrieves a user by key
func (r *userRepository) Get(ctx context.Context, key model.UserKey) (*model.User, error) {
	if err := key.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user key")
	}

	doc, err := r.collection().Doc(key.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("key", key.String()))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("key", key.String()))
	}

	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("key", key.String()))
	}

	return fromUserDoc(&d), nil
}

// Upsert replaces the whole document of the user. A single Set is atomic per document.
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	if _, err := r.collection().Doc(user.Key().String()).Set(ctx, toUserDoc(user)); err != nil {
		return goerr.Wrap(err, "failed to save user", goerr.V("key", user.Key().String()))
	}
	return nil
}
