package formula

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want *Formula
	}{
		{
			in:   "f0 ~ 1 + gp(time)",
			want: &Formula{Response: "f0", Intercept: true, GPs: []GPTerm{{Vars: []string{"time"}, Scale: true}}},
		},
		{
			in: "f0_z ~ context + sex + gp(time, by = context)",
			want: &Formula{
				Response: "f0_z", Intercept: true, Fixed: []string{"context", "sex"},
				GPs: []GPTerm{{Vars: []string{"time"}, By: []string{"context"}, Scale: true}},
			},
		},
		{
			in: "cog ~ sibilant + gp(lon, lat, by = sibilant, scale = FALSE)",
			want: &Formula{
				Response: "cog", Intercept: true, Fixed: []string{"sibilant"},
				GPs: []GPTerm{{Vars: []string{"lon", "lat"}, By: []string{"sibilant"}, Scale: false}},
			},
		},
		{
			in: "f0 ~ 0 + gp(time, by = sex:location)",
			want: &Formula{
				Response: "f0", Intercept: false,
				GPs: []GPTerm{{Vars: []string{"time"}, By: []string{"sex", "location"}, Scale: true}},
			},
		},
		{
			in:   "y ~ -1 + x",
			want: &Formula{Response: "y", Intercept: false, Fixed: []string{"x"}},
		},
		{
			in:   "y ~ x - 1",
			want: &Formula{Response: "y", Intercept: false, Fixed: []string{"x"}},
		},
		{
			in:   "y ~ x + x",
			want: &Formula{Response: "y", Intercept: true, Fixed: []string{"x"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"f0 context",
		"~ x",
		"y ~",
		"y ~ x +",
		"y ~ gp()",
		"y ~ gp(a, b, c)",
		"y ~ gp(time, by = a:b:c)",
		"y ~ gp(time, scale = maybe)",
		"y ~ gp(time, k = 10)",
		"y ~ gp(time",
		"y ~ a:b",
		"y ~ x - z",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestClasses(t *testing.T) {
	f, err := Parse("f0 ~ context + gp(time)")
	require.NoError(t, err)
	assert.Equal(t, []string{ClassIntercept, ClassB, ClassSDGP, ClassLScale, ClassSigma}, f.Classes())

	f, err = Parse("f0 ~ 0 + gp(time)")
	require.NoError(t, err)
	assert.Equal(t, []string{ClassSDGP, ClassLScale, ClassSigma}, f.Classes())

	f, err = Parse("f0 ~ 1")
	require.NoError(t, err)
	assert.Equal(t, []string{ClassIntercept, ClassSigma}, f.Classes())
}

func TestColumnsAndString(t *testing.T) {
	f, err := Parse("f0 ~ sex + gp(time, by = sex:location)")
	require.NoError(t, err)
	assert.Equal(t, []string{"f0", "sex", "time", "location"}, f.Columns())
	assert.Equal(t, "f0 ~ sex + gp(time, by = sex:location)", f.String())
	assert.Equal(t, "gptime", f.GPs[0].Label())
	assert.Equal(t, "sex:location", f.GPs[0].ByName())

	round, err := Parse(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, round)
}
