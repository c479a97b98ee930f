package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribers(t *testing.T) {
	var subs Subscribers
	subs.Notify()

	var a, b int
	unsubscribeA := subs.Subscribe(func() { a++ })
	var unsubscribeB func()
	unsubscribeB = subs.Subscribe(func() {
		b++
		unsubscribeB()
	})
	assert.Equal(t, 2, subs.Len())

	subs.Notify()
	subs.Notify()
	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b, "a handler may remove itself while notified")

	unsubscribeA()
	unsubscribeA()
	subs.Notify()
	assert.Equal(t, 2, a)
	assert.Zero(t, subs.Len())
}
