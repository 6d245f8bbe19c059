package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/validate"
)

var testLeadTypes = []models.LeadTypeOption{
	{Value: "callback", Text: "I would like a call back"},
	{Value: "appointment", Text: "I would like to arrange an appointment"},
}

func TestEmail(t *testing.T) {
	got, ok := Email("my email is John.Doe@Example.com, how much does it cost?")
	require.True(t, ok)
	assert.Equal(t, "john.doe@example.com", got)
	assert.True(t, validate.IsValidEmail(got))

	_, ok = Email("no address here")
	assert.False(t, ok)
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain digits", "my number is 5551234567", "5551234567", true},
		{"dashes", "call me at 555-123-4567 please", "5551234567", true},
		{"dots", "555.123.4567", "5551234567", true},
		{"international digits", "my number is +15551234567", "15551234567", true},
		{"four-three-three", "1234 567 890 is mine", "1234567890", true},
		{"too short", "call 12345", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Phone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneRoundTrip(t *testing.T) {
	for _, formatted := range []string{"555-123-4567", "555 123 4567", "555.123.4567", "5551234567"} {
		got, ok := Phone("reach me on " + formatted)
		require.True(t, ok, formatted)
		assert.True(t, validate.IsValidPhone(got), "%s -> %s", formatted, got)
	}
}

func TestOTPCode(t *testing.T) {
	got, ok := OTPCode("my code is 123456")
	require.True(t, ok)
	assert.Equal(t, "123456", got)

	_, ok = OTPCode("1234567")
	assert.False(t, ok)
	_, ok = OTPCode("12345")
	assert.False(t, ok)
}

func TestExtractorsAreDeterministic(t *testing.T) {
	in := "email a@b.co phone 5551234567 code 654321"
	e1, _ := Email(in)
	e2, _ := Email(in)
	p1, _ := Phone(in)
	p2, _ := Phone(in)
	o1, _ := OTPCode(in)
	o2, _ := OTPCode(in)
	assert.Equal(t, e1, e2)
	assert.Equal(t, p1, p2)
	assert.Equal(t, o1, o2)
}

func TestName(t *testing.T) {
	got, ok := Name("john smith", testLeadTypes)
	require.True(t, ok)
	assert.Equal(t, "John Smith", got)

	got, ok = Name("mary-jane o'neil", testLeadTypes)
	require.True(t, ok)
	assert.Equal(t, "Mary-jane O'neil", got)

	rejected := []string{
		"I would like a call back",
		"I want to book an appointment",
		"yes",
		"thank you",
		"can you help me",
		"john@example.com",
		"John 5551234567",
		"one two three four five",
		"J",
		"John3",
	}
	for _, in := range rejected {
		_, ok := Name(in, testLeadTypes)
		assert.False(t, ok, "expected %q to be rejected", in)
	}

	for in, want := range map[string]string{"Al": "Al", "ike": "Ike", "Art Back": "Art Back"} {
		got, ok := Name(in, testLeadTypes)
		assert.True(t, ok, "short name %q sharing letters with a lead type", in)
		assert.Equal(t, want, got)
	}
}

func TestMatchLeadType(t *testing.T) {
	m, ok := MatchLeadType("I want to book an appointment", testLeadTypes)
	require.True(t, ok)
	assert.Equal(t, "appointment", m.Option.Value)
	assert.Equal(t, TierPartial, m.Tier)

	m, ok = MatchLeadType("Callback", testLeadTypes)
	require.True(t, ok)
	assert.Equal(t, "callback", m.Option.Value)
	assert.Equal(t, TierExact, m.Tier)

	m, ok = MatchLeadType("i would like a call back", testLeadTypes)
	require.True(t, ok)
	assert.Equal(t, TierExact, m.Tier)

	_, ok = MatchLeadType("hello there", testLeadTypes)
	assert.False(t, ok)
	_, ok = MatchLeadType("", testLeadTypes)
	assert.False(t, ok)
}

func TestMatchLeadType_SharedPhrasing(t *testing.T) {
	tests := []struct {
		name    string
		options []models.LeadTypeOption
		input   string
		want    string
		tier    Tier
	}{
		{"option text inside input", testLeadTypes, "I would like to arrange an appointment please", "appointment", TierPartial},
		{"value inside input", testLeadTypes, "I would like to book an appointment", "appointment", TierPartial},
		{"input inside option text", testLeadTypes, "call back", "callback", TierPartial},
		{
			"value as word prefix",
			[]models.LeadTypeOption{testLeadTypes[0], {Value: "info", Text: "I would like further information"}},
			"I would like some information please", "info", TierPartial,
		},
		{
			"keyword overlap",
			[]models.LeadTypeOption{testLeadTypes[0], {Value: "consult", Text: "Book a free consultation visit"}},
			"free consultation", "consult", TierPartial,
		},
		{
			"keyword overlap ignores stop words",
			[]models.LeadTypeOption{testLeadTypes[0], {Value: "consult", Text: "Book a free consultation visit"}},
			"I would like a free visit", "consult", TierKeyword,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := MatchLeadType(tt.input, tt.options)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Option.Value)
			assert.Equal(t, tt.tier, m.Tier)
		})
	}

	_, ok := MatchLeadType("I would like", testLeadTypes)
	assert.False(t, ok, "stop words alone must not pick an option")
}

func TestMatchOption(t *testing.T) {
	options := []string{"Yes", "No"}
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"yes", "Yes", true},
		{" No. ", "No", true},
		{"yes please", "Yes", true},
		{"I don't know", "", false},
		{"not sure", "", false},
		{"yesterday", "", false},
		{"yes and no", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchOption(tt.input, options)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestOverlapIsSorted(t *testing.T) {
	a := newWordSet("zebra", "apple", "mango")
	b := newWordSet("mango", "zebra", "apple", "kiwi")
	assert.Equal(t, []string{"apple", "mango", "zebra"}, overlap(a, b))
}

func TestMatchLeadTypePrefersExact(t *testing.T) {
	options := []models.LeadTypeOption{
		{Value: "info", Text: "More info about pricing"},
		{Value: "pricing", Text: "Pricing"},
	}
	m, ok := MatchLeadType("pricing", options)
	require.True(t, ok)
	assert.Equal(t, "pricing", m.Option.Value)
	assert.Equal(t, TierExact, m.Tier)
}

func TestMatchService(t *testing.T) {
	services := []string{"Teeth Whitening", "Dental Cleaning", "Braces"}

	m, ok := MatchService("teeth whitening", services)
	require.True(t, ok)
	assert.Equal(t, "Teeth Whitening", m.Name)
	assert.Equal(t, TierExact, m.Tier)

	m, ok = MatchService("I want teeth whitening please", services)
	require.True(t, ok)
	assert.Equal(t, "Teeth Whitening", m.Name)
	assert.Equal(t, TierPartial, m.Tier)

	m, ok = MatchService("how much does whitening cost", services)
	require.True(t, ok)
	assert.Equal(t, "Teeth Whitening", m.Name)
	assert.Equal(t, TierKeyword, m.Tier)

	_, ok = MatchService("xyz", services)
	assert.False(t, ok)
}

func TestMatchServicePrefersExact(t *testing.T) {
	m, ok := MatchService("cleaning", []string{"Cleaning Deluxe", "Cleaning"})
	require.True(t, ok)
	assert.Equal(t, "Cleaning", m.Name)
	assert.Equal(t, TierExact, m.Tier)
}

func TestChoiceNumber(t *testing.T) {
	idx, ok := ChoiceNumber("2", 3)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = ChoiceNumber(" 3. ", 3)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	for _, in := range []string{"4", "0", "two", "2 please"} {
		_, ok := ChoiceNumber(in, 3)
		assert.False(t, ok, in)
	}
}
