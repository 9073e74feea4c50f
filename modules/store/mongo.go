package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// taskDocument is the MongoDB representation of a task.
type taskDocument struct {
	ID            string              `bson:"_id"`
	Title         string              `bson:"title"`
	Description   string              `bson:"description"`
	Status        string              `bson:"status"`
	Priority      string              `bson:"priority"`
	Category      string              `bson:"category"`
	TeamID        string              `bson:"teamId,omitempty"`
	DueDate       *time.Time          `bson:"dueDate,omitempty"`
	CreatedBy     task.UserRef        `bson:"createdBy"`
	AssignedUsers []task.AssignedUser `bson:"assignedUsers"`
	SubTasks      []task.SubTask      `bson:"subTasks"`
	Dependencies  []string            `bson:"dependencies"`
	Attachments   []task.Attachment   `bson:"attachments"`
	IsLocked      bool                `bson:"isLocked"`
	CompletedDate *time.Time          `bson:"completedDate,omitempty"`
	Version       int64               `bson:"version"`
	CreatedAt     time.Time           `bson:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt"`
}

func toDocument(t *task.Task) *taskDocument {
	return &taskDocument{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		Category:      t.Category,
		TeamID:        t.TeamID,
		DueDate:       t.DueDate,
		CreatedBy:     t.CreatedBy,
		AssignedUsers: t.AssignedUsers,
		SubTasks:      t.SubTasks,
		Dependencies:  t.Dependencies,
		Attachments:   t.Attachments,
		IsLocked:      t.IsLocked,
		CompletedDate: t.CompletedDate,
		Version:       t.Version,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (d *taskDocument) toTask() *task.Task {
	t := &task.Task{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Status:        task.Status(d.Status),
		Priority:      task.Priority(d.Priority),
		Category:      d.Category,
		TeamID:        d.TeamID,
		DueDate:       d.DueDate,
		CreatedBy:     d.CreatedBy,
		AssignedUsers: d.AssignedUsers,
		SubTasks:      d.SubTasks,
		Dependencies:  d.Dependencies,
		Attachments:   d.Attachments,
		IsLocked:      d.IsLocked,
		CompletedDate: d.CompletedDate,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	normalize(t)
	return t
}

// MongoStore is a task store backed by a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ task.Store = (*MongoStore)(nil)

// ConnectMongo connects to uri and returns a store over database.tasks.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewMongoStore(client, client.Database(database).Collection("tasks")), nil
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(client *mongo.Client, collection *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, collection: collection}
}

// EnsureIndexes creates the secondary indexes used by the queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy.id", Value: 1}}},
		{Keys: bson.D{{Key: "assignedUsers.id", Value: 1}}},
		{Keys: bson.D{{Key: "teamId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Create inserts a new task document.
func (s *MongoStore) Create(ctx context.Context, t *task.Task) error {
	if t.Version == 0 {
		t.Version = 1
	}
	if _, err := s.collection.InsertOne(ctx, toDocument(t)); err != nil {
		return task.NewPersistenceError("create", err)
	}
	return nil
}

// GetByID retrieves a task by its ID.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*task.Task, error) {
	var doc taskDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, task.ErrNotFound
		}
		return nil, task.NewPersistenceError("get", err)
	}
	return doc.toTask(), nil
}

// Update replaces the document if its version still equals expectedVersion.
func (s *MongoStore) Update(ctx context.Context, t *task.Task, expectedVersion int64) error {
	doc := toDocument(t)
	doc.Version = expectedVersion + 1

	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": t.ID, "version": expectedVersion}, doc)
	if err != nil {
		return task.NewPersistenceError("update", err)
	}
	if result.MatchedCount == 0 {
		current, err := s.GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		return &task.ConflictError{TaskID: t.ID, Expected: expectedVersion, Actual: current.Version}
	}

	t.Version = doc.Version
	return nil
}

// Delete removes a task document.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return task.NewPersistenceError("delete", err)
	}
	if result.DeletedCount == 0 {
		return task.ErrNotFound
	}
	return nil
}

// QueryByUserID returns the user's tasks, newest first.
func (s *MongoStore) QueryByUserID(ctx context.Context, userID string, scope task.Scope) ([]*task.Task, error) {
	filter := bson.M{"assignedUsers.id": userID}
	if scope == task.ScopeInvolved {
		filter = bson.M{"$or": bson.A{
			bson.M{"createdBy.id": userID},
			bson.M{"assignedUsers.id": userID},
		}}
	}
	return s.find(ctx, filter, "query by user")
}

// QueryByTeamID returns the team's tasks, newest first.
func (s *MongoStore) QueryByTeamID(ctx context.Context, teamID string) ([]*task.Task, error) {
	return s.find(ctx, bson.M{"teamId": teamID}, "query by team")
}

// QueryByIDs returns the tasks whose ids are in ids.
func (s *MongoStore) QueryByIDs(ctx context.Context, ids []string) ([]*task.Task, error) {
	if len(ids) == 0 {
		return []*task.Task{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, "query by ids")
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, op string) ([]*task.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, task.NewPersistenceError(op, err)
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, task.NewPersistenceError(op, err)
	}
	tasks := make([]*task.Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, docs[i].toTask())
	}
	return tasks, nil
}
