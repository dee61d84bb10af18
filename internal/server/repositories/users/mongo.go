package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	FullName     string        `bson:"fullname"`
	PasswordHash string        `bson:"password"`
	Avatar       string        `bson:"avatar"`
	CoverImage   string        `bson:"coverImage"`
	RefreshToken *string       `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

// MongoRepository stores users as documents in the users collection.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(usersCollection), now: time.Now}
}

// EnsureIndexes creates the unique username and email indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	filter := lookupFilter(user.Username, user.Email)
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return nil, common.ErrConflict
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	user.CreatedAt, user.UpdatedAt = now, now
	doc := toDocument(user)
	doc.ID = bson.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.ID = doc.ID.Hex()
	return user, nil
}

func (r *MongoRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	filter := lookupFilter(username, email)
	if filter == nil {
		return nil, common.ErrRecordNotFound
	}
	return r.findOne(ctx, filter)
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrRecordNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepository) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	var update bson.D
	if token == nil {
		update = bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: r.now().UTC()}}},
		}
	} else {
		update = bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: *token},
			{Key: "updatedAt", Value: r.now().UTC()},
		}}}
	}
	return r.updateOne(ctx, id, update)
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: passwordHash},
		{Key: "updatedAt", Value: r.now().UTC()},
	}}}
	return r.updateOne(ctx, id, update)
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrRecordNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return toModel(&doc), nil
}

func (r *MongoRepository) updateOne(ctx context.Context, id string, update bson.D) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrRecordNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}

// lookupFilter builds an $or over the non-empty identifiers, or nil if both
// are empty.
func lookupFilter(username, email string) bson.D {
	var or bson.A
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		return nil
	}
	return bson.D{{Key: "$or", Value: or}}
}

func toDocument(u *models.User) *userDocument {
	doc := &userDocument{
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		RefreshToken: u.RefreshToken,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if oid, err := bson.ObjectIDFromHex(u.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func toModel(d *userDocument) *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
