package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/util"
)

const ProductsCollection = "products"

// codeNamespaceExists is returned by createCollection when the collection is already there.
const codeNamespaceExists = 48

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Quantity    int                `bson:"quantity"`
	Image       string             `bson:"image"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d productDocument) product() models.Product {
	return models.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Quantity:    d.Quantity,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// productSchema mirrors models.Product.CheckRecord inside the server.
var productSchema = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "description", "price", "quantity", "image"},
		"properties": bson.M{
			"name":        bson.M{"bsonType": "string", "minLength": 1},
			"description": bson.M{"bsonType": "string", "minLength": 1},
			"price":       bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}, "minimum": 0},
			"quantity":    bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			"image":       bson.M{"bsonType": "string", "minLength": 1},
		},
	},
}

type MongoRepo struct {
	Coll *mongo.Collection
}

// NewMongoRepo makes sure the collection exists with its schema validator.
func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	opts := options.CreateCollection().SetValidator(productSchema)
	err := db.CreateCollection(ctx, ProductsCollection, opts)
	var cmdErr mongo.CommandError
	if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists) {
		return nil, fmt.Errorf("create products collection: %w", err)
	}
	return &MongoRepo{Coll: db.Collection(ProductsCollection)}, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func noDocuments(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (r *MongoRepo) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := p.CheckRecord(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	doc := productDocument{
		ID:          primitive.NewObjectID(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Image:       p.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.Coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	out := doc.product()
	return &out, nil
}

func (r *MongoRepo) List(ctx context.Context, page util.Page) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if !page.All() {
		opts = opts.SetSkip(int64(page.Offset)).SetLimit(int64(page.Limit))
	}

	cur, err := r.Coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	items := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.product())
	}
	return items, nil
}

func (r *MongoRepo) Count(ctx context.Context) (int64, error) {
	return r.Coll.CountDocuments(ctx, bson.D{})
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc productDocument
	if err := r.Coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, noDocuments(err)
	}
	out := doc.product()
	return &out, nil
}

func (r *MongoRepo) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Quantity != nil {
		set["quantity"] = *patch.Quantity
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc productDocument
	if err := r.Coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, noDocuments(err)
	}
	out := doc.product()
	return &out, nil
}

func (r *MongoRepo) Delete(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc productDocument
	if err := r.Coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, noDocuments(err)
	}
	out := doc.product()
	return &out, nil
}
