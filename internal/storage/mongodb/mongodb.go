package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Storage struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	roles    *mongo.Collection
	tokens   *mongo.Collection
}

type userDoc struct {
	ID            string     `bson:"_id"`
	Email         string     `bson:"email"`
	PassHash      []byte     `bson:"pass_hash"`
	RoleID        int        `bson:"role_id"`
	Active        bool       `bson:"active"`
	EmailVerified bool       `bson:"email_verified"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     *time.Time `bson:"updated_at,omitempty"`
	LastLoginAt   *time.Time `bson:"last_login_at,omitempty"`
}

type roleDoc struct {
	ID          int    `bson:"_id"`
	Name        string `bson:"name"`
	Description string `bson:"description"`
}

type refreshTokenDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
	Revoked   bool      `bson:"revoked"`
	IP        string    `bson:"ip"`
	UserAgent string    `bson:"user_agent"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:   client,
		database: db,
		users:    db.Collection("users"),
		roles:    db.Collection("roles"),
		tokens:   db.Collection("refresh_tokens"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	// users.email unique
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	// roles.name unique
	_, err = s.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("roles.name index: %w", err)
	}

	// refresh_tokens.token unique
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("refresh_tokens.token index: %w", err)
	}

	// refresh_tokens.user_id for per-user lookups
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("refresh_tokens.user_id index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongodb.SaveUser"

	doc := userDoc{
		ID:            user.ID.String(),
		Email:         user.Email,
		PassHash:      user.PassHash,
		RoleID:        user.RoleID,
		Active:        user.Active,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}

	_, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongodb.UserByEmail"
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}}, op)
}

func (s *Storage) UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const op = "storage.mongodb.UserByID"
	return s.findUser(ctx, bson.D{{Key: "_id", Value: userID.String()}}, op)
}

func (s *Storage) findUser(ctx context.Context, filter bson.D, op string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.User{
		ID:            id,
		Email:         doc.Email,
		PassHash:      doc.PassHash,
		RoleID:        doc.RoleID,
		Active:        doc.Active,
		EmailVerified: doc.EmailVerified,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		LastLoginAt:   doc.LastLoginAt,
	}, nil
}

func (s *Storage) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	const op = "storage.mongodb.RoleByName"
	return s.findRole(ctx, bson.D{{Key: "name", Value: name}}, op)
}

func (s *Storage) RoleByID(ctx context.Context, roleID int) (*models.Role, error) {
	const op = "storage.mongodb.RoleByID"
	return s.findRole(ctx, bson.D{{Key: "_id", Value: roleID}}, op)
}

func (s *Storage) findRole(ctx context.Context, filter bson.D, op string) (*models.Role, error) {
	var doc roleDoc
	err := s.roles.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrRoleNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Role{ID: doc.ID, Name: doc.Name, Description: doc.Description}, nil
}

// SeedRole inserts a role if it doesn't exist yet.
func (s *Storage) SeedRole(ctx context.Context, id int, name, description string) error {
	const op = "storage.mongodb.SeedRole"

	_, err := s.roles.InsertOne(ctx, roleDoc{ID: id, Name: name, Description: description})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	const op = "storage.mongodb.UpdateLastLogin"

	_, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID.String()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "last_login_at", Value: at}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error {
	const op = "storage.mongodb.MarkEmailVerified"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "email_verified", Value: true},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.mongodb.SaveRefreshToken"

	_, err := s.tokens.InsertOne(ctx, tokenToDoc(token))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) RefreshTokenByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	const op = "storage.mongodb.RefreshTokenByValue"

	var doc refreshTokenDoc
	err := s.tokens.FindOne(ctx, bson.D{{Key: "token", Value: value}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docToToken(&doc, op)
}

func (s *Storage) RevokeRefreshToken(ctx context.Context, value string) error {
	const op = "storage.mongodb.RevokeRefreshToken"

	res, err := s.tokens.UpdateOne(ctx,
		bson.D{{Key: "token", Value: value}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "revoked", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}
	return nil
}

// RotateRefreshToken revokes the presented token and inserts its
// replacement. The revoke filter matches only an unrevoked document,
// so a concurrent rotation of the same value loses cleanly with
// ErrTokenNotFound.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldValue string, newToken *models.RefreshToken) error {
	const op = "storage.mongodb.RotateRefreshToken"

	res, err := s.tokens.UpdateOne(ctx,
		bson.D{
			{Key: "token", Value: oldValue},
			{Key: "revoked", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "revoked", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: revoke old: %w", op, err)
	}
	if res.ModifiedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}

	_, err = s.tokens.InsertOne(ctx, tokenToDoc(newToken))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: insert new: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: insert new: %w", op, err)
	}
	return nil
}

func tokenToDoc(token *models.RefreshToken) refreshTokenDoc {
	return refreshTokenDoc{
		ID:        token.ID.String(),
		UserID:    token.UserID.String(),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
		Revoked:   token.Revoked,
		IP:        token.IP,
		UserAgent: token.UserAgent,
	}
}

func docToToken(doc *refreshTokenDoc, op string) (*models.RefreshToken, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.RefreshToken{
		ID:        id,
		UserID:    userID,
		Token:     doc.Token,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
		Revoked:   doc.Revoked,
		IP:        doc.IP,
		UserAgent: doc.UserAgent,
	}, nil
}
