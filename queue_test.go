package harbor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferQueueNameIsStablePerAccount(t *testing.T) {
	first := transferQueueName("acc_1", "new:transfer", 20)
	second := transferQueueName("acc_1", "new:transfer", 20)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "new:transfer_"))
}

func TestTransferQueueNameStaysInRange(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		name := transferQueueName(fmt.Sprintf("acc_%d", i), "new:transfer", 4)
		seen[name] = true
	}
	assert.LessOrEqual(t, len(seen), 4)
	for queue := range seen {
		assert.Regexp(t, `^new:transfer_[1-4]$`, queue)
	}
}
