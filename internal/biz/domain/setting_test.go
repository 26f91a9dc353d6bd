package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory_Title(t *testing.T) {
	assert.Equal(t, "Filters", CategoryFilters.Title())
	assert.Equal(t, "Rewriters", CategoryRewriters.Title())
	assert.Equal(t, "Visual", CategoryVisual.Title())
	assert.Equal(t, "Customs", CategoryCustoms.Title())
	assert.Equal(t, "misc_category", Category("misc_category").Title())
	assert.False(t, Category("misc_category").Valid())
}
