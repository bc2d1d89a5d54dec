package tokenbucket_test

import (
	"context"
	"fmt"
	"log"

	"github.com/dmitrymomot/tokenbucket"
)

func ExampleLimiter() {
	// One token per second, bursts of up to three.
	limiter, err := tokenbucket.NewLimiter(1, 3, tokenbucket.NewMemoryStorage())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		conforming, _ := limiter.Consume(ctx, "user:42")
		fmt.Println(conforming)
	}

	// Output:
	// true
	// true
	// true
	// false
}
