package demo

import (
	"context"
	"fmt"
	"io"
)

// Outcome is what the caller of one decorated call observed
type Outcome struct {
	Call   string
	Result any
	Err    error
}

// RunWorkload calls every Calculator method rounds times. Every third Divide
// divides by zero and every fourth Sqrt takes a negative number, so failing
// calls are part of every run.
func RunWorkload(ctx context.Context, calc Calculator, rounds int) []Outcome {
	outcomes := make([]Outcome, 0, 3*rounds)

	for i := 1; i <= rounds; i++ {
		sum, err := calc.Add(ctx, i, i*2)
		outcomes = append(outcomes, Outcome{Call: fmt.Sprintf("Add(%d, %d)", i, i*2), Result: sum, Err: err})

		divisor := i % 3
		quotient, err := calc.Divide(ctx, i*10, divisor)
		outcomes = append(outcomes, Outcome{Call: fmt.Sprintf("Divide(%d, %d)", i*10, divisor), Result: quotient, Err: err})

		x := float64(i * i)
		if i%4 == 0 {
			x = -x
		}
		root, err := calc.Sqrt(ctx, x)
		outcomes = append(outcomes, Outcome{Call: fmt.Sprintf("Sqrt(%g)", x), Result: root, Err: err})
	}

	return outcomes
}

// WriteOutcomes writes one line per outcome
func WriteOutcomes(w io.Writer, outcomes []Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%-20s error: %v\n", o.Call, o.Err)
			continue
		}
		fmt.Fprintf(w, "%-20s = %v\n", o.Call, o.Result)
	}
}
