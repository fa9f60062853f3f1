package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/jobscout/internal/pipeline/canonical"
)

func TestCompanyName_PunctuationAndSuffixInsensitive(t *testing.T) {
	t.Parallel()
	assert.Equal(t, canonical.CompanyName("Acme, Inc."), canonical.CompanyName("acme inc"))
	assert.Equal(t, "acme", canonical.CompanyName("ACME Pvt Ltd"))
	assert.Equal(t, "tata consultancy services", canonical.CompanyName("Tata Consultancy Services Limited"))
}

func TestContentHash_NormalizationInvariant(t *testing.T) {
	t.Parallel()
	a := canonical.ContentHash("Backend  Engineer", "Acme, Inc.", "Bangalore", "https://acme.co/apply")
	b := canonical.ContentHash("backend engineer", "acme inc", "  BANGALORE ", "HTTPS://ACME.CO/APPLY")
	assert.Equal(t, a, b)

	c := canonical.ContentHash("Backend Engineer", "Acme", "Bangalore", "https://acme.co/apply")
	assert.NotEqual(t, a, c)
}

func TestContentHash_FieldBoundaries(t *testing.T) {
	t.Parallel()
	// "ab"+"c" must not collide with "a"+"bc".
	a := canonical.ContentHash("ab", "c", "", "")
	b := canonical.ContentHash("a", "bc", "", "")
	assert.NotEqual(t, a, b)
}
