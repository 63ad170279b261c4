package idempotency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/pos-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

// A low stock alert is claimed once per product, location and day.
func ExampleManager_CheckAndMark() {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()

	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	manager, _ := idempotency.NewManager(client, 48*time.Hour)
	ctx := context.Background()
	key := "prod-1:loc-1:20261018"

	for _, attempt := range []string{"first scan", "second scan"} {
		seen, _ := manager.CheckAndMark(ctx, "low-stock", key)
		fmt.Printf("%s: already alerted=%v\n", attempt, seen)
	}
	_ = manager.Release(ctx, "low-stock", key)
	seen, _ := manager.CheckAndMark(ctx, "low-stock", key)
	fmt.Printf("after release: already alerted=%v\n", seen)
	// Output:
	// first scan: already alerted=false
	// second scan: already alerted=true
	// after release: already alerted=false
}
