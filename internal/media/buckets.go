package media

import (
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

const (
	BucketGymPhotos      = "gym-photos"
	BucketFoodLogs       = "food-logs"
	BucketHealthCheckups = "health-checkups"
	BucketChatMedia      = "chat-media"
)

// Bucket is the access policy of one storage bucket.
type Bucket struct {
	Name   string
	Public bool
}

// Buckets lists the buckets the application writes to.
var Buckets = map[string]Bucket{
	BucketGymPhotos:      {Name: BucketGymPhotos, Public: true},
	BucketFoodLogs:       {Name: BucketFoodLogs},
	BucketHealthCheckups: {Name: BucketHealthCheckups},
	BucketChatMedia:      {Name: BucketChatMedia},
}

// LookupBucket returns the policy for name.
func LookupBucket(name string) (Bucket, error) {
	b, ok := Buckets[name]
	if !ok {
		return Bucket{}, errors.Newf(errors.ErrBucketUnknown, "unknown bucket %q", name)
	}
	return b, nil
}
