package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "4.5", formatQuantity(Entry{
		Category:               CategoryPhysicalSupport,
		DisabilitySupportHours: 4.5,
	}))

	assert.Equal(t, "3", formatQuantity(Entry{
		Category:                   CategorySevereComprehensive,
		SevereComprehensiveSupport: 3,
	}))

	// Severe visitation is the fallback quantity for the severe category.
	assert.Equal(t, "2.25", formatQuantity(Entry{
		Category:         CategorySevereComprehensive,
		SevereVisitation: 2.25,
	}))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, normalizeName("平井　里沙"), normalizeName("平井 里沙"))
	assert.Equal(t, "平井里沙", normalizeName("平井 里沙"))
}
