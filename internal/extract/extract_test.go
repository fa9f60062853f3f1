package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

func lex(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	return lexicon.MustLoad()
}

func TestSplit_NumberedSections(t *testing.T) {
	t.Parallel()
	text := "1. Backend Engineer at Acme\nDetails here\n2. Data Analyst at Acme\nMore details"
	secs := Split(text)
	require.Len(t, secs, 2)
	assert.Contains(t, secs[0], "Backend Engineer")
	assert.Contains(t, secs[1], "Data Analyst")
}

func TestSplit_IsHiringBlocks(t *testing.T) {
	t.Parallel()
	text := "Acme is hiring\nBackend role\n\nGlobex is hiring\nData role"
	secs := Split(text)
	require.Len(t, secs, 2)
	assert.Contains(t, secs[0], "Acme")
	assert.Contains(t, secs[1], "Globex")
}

func TestSplit_ApplyHereDelimiters(t *testing.T) {
	t.Parallel()
	text := "Role A\nApply here: https://x.io/a\nRole B\nApply here: https://x.io/b\nRole C\nApply here: https://x.io/c"
	secs := Split(text)
	require.Len(t, secs, 3)
}

func TestSplit_SingleJobFallthrough(t *testing.T) {
	t.Parallel()
	secs := Split("We are hiring a Backend Developer at Acme")
	require.Len(t, secs, 1)
}

func TestSplit_Stable(t *testing.T) {
	t.Parallel()
	text := "1. Role one details\n2. Role two details\n3. Role three details"
	assert.Equal(t, Split(text), Split(text))
}

func TestCompany_PriorityOrder(t *testing.T) {
	t.Parallel()
	// Mention beats the "is hiring" block.
	assert.Equal(t, "acmejobs", Company("Contact @acmejobs\nGlobex is hiring"))
	// "is hiring" beats the label.
	assert.Equal(t, "Globex", Company("Globex is hiring\nCompany: Initech"))
	assert.Equal(t, "Initech", Company("Company: Initech\nGreat place"))
	assert.Equal(t, "Hooli", Company("Come join Hooli as a backend dev"))
}

func TestCompany_EmailDoesNotReadAsMention(t *testing.T) {
	t.Parallel()
	got := Company("Send resume to hr@acme.io\nCompany: Initech")
	assert.Equal(t, "Initech", got)
}

func TestCompany_ValidityFilter(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Company("Urgent Requirement\nlong description without any company markers at all"))
	assert.Empty(t, Company("Company: x"))                        // too short
	assert.Empty(t, Company("Company: call 9876543210 for info")) // phone embedded
}

func TestTitle_Patterns(t *testing.T) {
	t.Parallel()
	l := lex(t)
	assert.Equal(t, "Backend Developer", Title("Role: Backend Developer\nstuff", "", l))
	assert.Equal(t, "data analyst", Title("We are hiring for a data analyst, join us", "", l))
	assert.Equal(t, "DevOps Engineer", Title("DevOps Engineer\nBangalore office", "", l))
	// Title equal to company is rejected.
	assert.Empty(t, Title("Role: Acme", "Acme", l))
}

func TestLocation_RemoteOverridesOnsite(t *testing.T) {
	t.Parallel()
	l := lex(t)
	loc := Location("Location: Bangalore\nHybrid, work from office twice a week", l)
	assert.True(t, loc.IsHybrid)
	assert.False(t, loc.IsOnsiteOnly, "hybrid overrides onsite-only")
	assert.Equal(t, domain.GeoIndia, loc.Scope)
	assert.Contains(t, loc.Cities, "bangalore")
}

func TestLocation_NegativeRemoteMarker(t *testing.T) {
	t.Parallel()
	l := lex(t)
	loc := Location("Office role, no remote. Location: Mumbai", l)
	assert.False(t, loc.IsRemote)
	assert.True(t, loc.IsOnsiteOnly)
}

func TestSalary_PatternOrder(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want int64
	}{
		{"12-18 LPA", 150000},           // range takes upper bound
		{"18 LPA", 150000},              // single
		{"upto 24 LPA", 200000},         // upto
		{"30k-50k per month", 50000},    // monthly k range
		{"45k per month", 45000},        // single k
		{"3k stipend", 0},               // k below 5 invalid
		{"120k salary", 0},              // k above 99 invalid
		{"₹25,000 - ₹40,000", 40000},    // rupee range
		{"Rs. 35,000 per month", 35000}, // single rupee
		{"₹5,000 stipend", 0},           // below rupee floor
		{"₹2,50,000", 0},                // above rupee ceiling
		{"competitive salary", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Salary(tc.text), tc.text)
	}
}

func TestExperience_Patterns(t *testing.T) {
	t.Parallel()
	l := lex(t)

	e := Experience("Freshers welcome", l)
	assert.True(t, e.IsFresher)

	e = Experience("3-5 yrs experience required", l)
	assert.Equal(t, 3, e.MinYears)
	assert.Equal(t, 5, e.MaxYears)
	assert.Equal(t, "3-5 years", e.Raw)

	e = Experience("5+ years of backend work", l)
	assert.Equal(t, 5, e.MinYears)
	assert.Zero(t, e.MaxYears)

	e = Experience("minimum 2 years in sales", l)
	assert.Equal(t, 2, e.MinYears)

	e = Experience("4 years with python", l)
	assert.Equal(t, 4, e.MinYears)
	assert.Equal(t, 4, e.MaxYears)
}

func TestCategory_DataBeatsTechOnBigTie(t *testing.T) {
	t.Parallel()
	l := lex(t)
	// Scores tie at 5; at that level data wins over tech.
	text := "data analyst / engineer for etl pipelines, sql, api, cloud"
	got := Category(text, l)
	assert.Equal(t, "data", got)

	assert.Equal(t, "unspecified", Category("hello world", l))
	assert.Equal(t, "design", Category("ux designer with figma and prototype experience", l))
}

func TestContacts_ApplyURLPreference(t *testing.T) {
	t.Parallel()
	ac := Contacts("Apply https://jobs.acme.io/x and read https://blog.acme.io", nil)
	assert.Equal(t, "https://jobs.acme.io/x", ac.URL)

	ac = Contacts("Details: https://acme.io/about and https://acme.io/careers/42", nil)
	assert.Equal(t, "https://acme.io/careers/42", ac.URL)

	ac = Contacts("No urls in text", []string{"https://x.io/first", "https://x.io/second"})
	assert.Equal(t, "https://x.io/first", ac.URL)

	ac = Contacts("Email hr@acme.io or call +91 9876543210", nil)
	assert.Contains(t, ac.Emails, "hr@acme.io")
	require.Len(t, ac.Phones, 1)
}

func TestExtract_MultiJobMessage(t *testing.T) {
	t.Parallel()
	e := New()
	text := "1. Backend Engineer at Acme, Bangalore, 3-5 yrs, 18 LPA. Apply: https://acme.co/apply\n2. Data Analyst at Acme, Remote, Fresher. Apply: https://acme.co/apply2"

	cands := e.Extract(text, nil)
	require.Len(t, cands, 2)

	assert.Equal(t, "Acme", cands[0].Company)
	assert.Equal(t, "Backend Engineer", cands[0].Title)
	assert.Equal(t, int64(150000), cands[0].SalaryMonthly)
	assert.Equal(t, 3, cands[0].Experience.MinYears)
	assert.Equal(t, 5, cands[0].Experience.MaxYears)

	assert.Equal(t, "Acme", cands[1].Company)
	assert.Equal(t, "Data Analyst", cands[1].Title)
	assert.Zero(t, cands[1].SalaryMonthly)
	assert.True(t, cands[1].Experience.IsFresher)
	assert.True(t, cands[1].Location.IsRemote)
}

func TestExtract_InternationalOnsiteRejected(t *testing.T) {
	t.Parallel()
	e := New()
	text := "Senior Engineer at Initech\nLocation: Costa Mesa, California\nOnsite only, no remote\nApply: https://initech.example/careers"
	cands := e.Extract(text, nil)
	assert.Empty(t, cands, "international onsite posting must be rejected")
}

func TestExtract_LowConfidenceRejected(t *testing.T) {
	t.Parallel()
	e := New()
	cands := e.Extract("just some chatter with a link https://nothing.example/page", nil)
	assert.Empty(t, cands)
}

func TestExtract_ContentHashSet(t *testing.T) {
	t.Parallel()
	e := New()
	text := "Role: Backend Developer\nCompany: Acme\nLocation: Pune\nSkills: Golang, PostgreSQL\nApply here: https://acme.io/careers/1"
	cands := e.Extract(text, nil)
	require.Len(t, cands, 1)
	assert.Len(t, cands[0].ContentHash, 64)
	assert.Equal(t, "tech", cands[0].Category)
	assert.Contains(t, cands[0].Skills, "golang")
	assert.Contains(t, cands[0].Skills, "postgresql")
}
