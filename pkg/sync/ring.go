package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// stripeRing consistently maps account keys onto a fixed set of lock stripes.
// Each stripe is placed on the ring replicas times, at points derived from the
// hash of its name.
type stripeRing struct {
	points *treemap.Map

	// first caches the stripe at the lowest ring point, which every hash past
	// the last point wraps around to.
	first int
}

func newStripeRing(stripes, replicas uint) *stripeRing {
	points := treemap.NewWith(utils.Int64Comparator)

	for stripe := uint(0); stripe < stripes; stripe++ {
		nameHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("lock%d", stripe)))
		nameHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(nameHashBytes, nameHash)

		for replica := uint(0); replica < replicas; replica++ {
			hasher := murmur3.New128()
			hasher.Write(nameHashBytes)
			replicaBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(replicaBytes, uint32(replica))
			hasher.Write(replicaBytes)
			point, _ := hasher.Sum128()
			points.Put(int64(point), int(stripe))
		}
	}

	r := &stripeRing{points: points}
	if _, stripe := points.Min(); stripe != nil {
		r.first = stripe.(int)
	}
	return r
}

// stripe returns the stripe index that owns key
func (r *stripeRing) stripe(key []byte) int {
	if _, stripe := r.points.Ceiling(hashKey(key)); stripe != nil {
		return stripe.(int)
	}
	return r.first
}

func hashKey(key []byte) int64 {
	h1, _ := murmur3.Sum128(key)
	return int64(h1)
}
