package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kyptronix/spectrum-admin/resilience"
)

func ExampleExecutor() {
	exec := resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "admin-api"})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})),
		resilience.WithTimeout(time.Second),
	)

	attempts := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("502 bad gateway")
		}
		return nil
	})
	fmt.Println(attempts, err)
	// Output:
	// 2 <nil>
}
