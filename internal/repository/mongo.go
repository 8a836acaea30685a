package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/railqr/railqr-service/internal/models"
)

var _ InventoryStore = (*MongoInventoryStore)(nil)

const inventoryCollection = "inventory"

type inventoryDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Vendor          string             `bson:"vendor"`
	VendorID        string             `bson:"vendor_id"`
	LotNumber       string             `bson:"lot_number"`
	ItemType        string             `bson:"item_type"`
	ItemMaterial    string             `bson:"item_material"`
	ManufactureDate string             `bson:"manufacture_date"`
	InstallDate     *string            `bson:"install_date,omitempty"`
	WarrantyPeriod  string             `bson:"warranty_period"`
	RailPoleNumber  string             `bson:"rail_pole_number"`
	InspectorCode   string             `bson:"inspector_code"`
	InspectionDate  *string            `bson:"inspection_date,omitempty"`
	DefectType      string             `bson:"defect_type"`
	CreatedAt       time.Time          `bson:"created_at"`
}

func (d *inventoryDocument) item() *models.InventoryItem {
	return &models.InventoryItem{
		ID:              d.ID.Hex(),
		Vendor:          d.Vendor,
		VendorID:        d.VendorID,
		LotNumber:       d.LotNumber,
		ItemType:        d.ItemType,
		ItemMaterial:    d.ItemMaterial,
		ManufactureDate: d.ManufactureDate,
		InstallDate:     d.InstallDate,
		WarrantyPeriod:  d.WarrantyPeriod,
		RailPoleNumber:  d.RailPoleNumber,
		InspectorCode:   d.InspectorCode,
		InspectionDate:  d.InspectionDate,
		DefectType:      d.DefectType,
		CreatedAt:       d.CreatedAt,
	}
}

// MongoInventoryStore keeps inventory in a MongoDB collection.
type MongoInventoryStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to MongoDB and ensures the collection indexes.
func OpenMongo(ctx context.Context, opts Options) (*MongoInventoryStore, error) {
	clientOpts := options.Client().ApplyURI(opts.DSN)
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("open mongodb: %w", err)
	}
	ping := func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
	if err := waitFor(ctx, opts.Driver, opts.ConnectTimeout, ping); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	name := opts.Database
	if name == "" {
		name = "railqr"
	}
	s := &MongoInventoryStore{
		client: client,
		coll:   client.Database(name).Collection(inventoryCollection),
	}
	_, err = s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_type", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create inventory indexes: %w", err)
	}
	return s, nil
}

func (s *MongoInventoryStore) Create(ctx context.Context, item *models.InventoryItem) (string, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	res, err := s.coll.InsertOne(ctx, newInventoryDocument(item))
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	item.ID = oid.Hex()
	return item.ID, nil
}

func newInventoryDocument(item *models.InventoryItem) inventoryDocument {
	return inventoryDocument{
		Vendor:          item.Vendor,
		VendorID:        item.VendorID,
		LotNumber:       item.LotNumber,
		ItemType:        item.ItemType,
		ItemMaterial:    item.ItemMaterial,
		ManufactureDate: item.ManufactureDate,
		InstallDate:     item.InstallDate,
		WarrantyPeriod:  item.WarrantyPeriod,
		RailPoleNumber:  item.RailPoleNumber,
		InspectorCode:   item.InspectorCode,
		InspectionDate:  item.InspectionDate,
		DefectType:      item.DefectType,
		CreatedAt:       item.CreatedAt,
	}
}

// objectID maps an id that is not an ObjectID to ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (s *MongoInventoryStore) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc inventoryDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.item(), nil
}

func (s *MongoInventoryStore) UpdateInspection(ctx context.Context, id string, in models.Inspection) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, inspectionUpdate(in))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// inspectionUpdate unsets inspection_date when the inspection is cleared.
func inspectionUpdate(in models.Inspection) bson.M {
	set := bson.M{
		"inspector_code": in.InspectorCode,
		"defect_type":    in.DefectType,
	}
	update := bson.M{"$set": set}
	if in.InspectionDate != nil {
		set["inspection_date"] = *in.InspectionDate
	} else {
		update["$unset"] = bson.M{"inspection_date": ""}
	}
	return update
}

func (s *MongoInventoryStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoInventoryStore) List(ctx context.Context) ([]*models.InventoryItem, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []inventoryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]*models.InventoryItem, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].item())
	}
	return items, nil
}

func (s *MongoInventoryStore) Stats(ctx context.Context, now time.Time) (*models.InventoryStats, error) {
	total, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defective, err := s.coll.CountDocuments(ctx, bson.M{"defect_type": bson.M{"$exists": true, "$ne": ""}})
	if err != nil {
		return nil, err
	}
	// Matches both a missing field and an explicit null.
	pending, err := s.coll.CountDocuments(ctx, bson.M{"inspection_date": nil})
	if err != nil {
		return nil, err
	}

	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$item_type"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	byType := []models.TypeCount{}
	if err := cur.All(ctx, &byType); err != nil {
		return nil, err
	}
	models.SortTypeCounts(byType)

	items, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}

	return &models.InventoryStats{
		Total:             int(total),
		ByType:            byType,
		Defective:         int(defective),
		PendingInspection: int(pending),
		WarrantyExpired:   models.CountWarrantyExpired(items, now),
	}, nil
}

func (s *MongoInventoryStore) Analytics(ctx context.Context, now time.Time) ([]models.AnalyticsRow, error) {
	items, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	return models.BuildAnalytics(items, now), nil
}

func (s *MongoInventoryStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoInventoryStore) summaries(ctx context.Context) ([]models.ItemSummary, error) {
	projection := bson.D{
		{Key: "item_type", Value: 1},
		{Key: "defect_type", Value: 1},
		{Key: "inspection_date", Value: 1},
		{Key: "manufacture_date", Value: 1},
		{Key: "warranty_period", Value: 1},
	}
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	items := []models.ItemSummary{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
