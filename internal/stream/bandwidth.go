package stream

import (
	"context"

	"golang.org/x/time/rate"
)

// bandwidthLimiter paces a single response. A nil limiter is unlimited.
type bandwidthLimiter struct {
	limiter *rate.Limiter
}

func newBandwidthLimiter(kbps int) *bandwidthLimiter {
	if kbps <= 0 {
		return nil
	}
	bytesPerSecond := kbps * 1024
	return &bandwidthLimiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
	}
}

// WaitBytes blocks until n bytes may be sent. Requests larger than the burst
// are split so WaitN never rejects them.
func (b *bandwidthLimiter) WaitBytes(ctx context.Context, n int) error {
	if b == nil || n <= 0 {
		return nil
	}
	burst := b.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := b.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
