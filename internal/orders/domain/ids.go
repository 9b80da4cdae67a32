package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a 24 character hex object id used as the native key of every record.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsNativeID reports whether s has the shape of a native record id.
func IsNativeID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
