package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalProfileURL(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already canonical",
			in:   "https://linkedin.com/in/jane-doe",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "strips www and lowercases host",
			in:   "https://WWW.LinkedIn.com/in/jane-doe",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "drops query and fragment",
			in:   "https://linkedin.com/in/jane-doe?miniProfileUrn=urn%3Ali%3Afs#section",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "trims trailing slash",
			in:   "https://linkedin.com/in/jane-doe/",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "adds https scheme",
			in:   "linkedin.com/in/jane-doe",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "http becomes https",
			in:   "http://www.linkedin.com/in/jane-doe",
			want: "https://linkedin.com/in/jane-doe",
		},
		{
			name: "path case preserved",
			in:   "https://linkedin.com/in/Jane-Doe-123",
			want: "https://linkedin.com/in/Jane-Doe-123",
		},
		{
			name: "surrounding whitespace",
			in:   "  https://linkedin.com/in/jane-doe  ",
			want: "https://linkedin.com/in/jane-doe",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalProfileURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalProfileURLEquivalentForms(t *testing.T) {
	forms := []string{
		"https://www.linkedin.com/in/jane-doe/",
		"http://linkedin.com/in/jane-doe?utm_source=share",
		"linkedin.com/in/jane-doe",
	}
	first, err := CanonicalProfileURL(forms[0])
	require.NoError(t, err)
	for _, f := range forms[1:] {
		got, err := CanonicalProfileURL(f)
		require.NoError(t, err)
		require.Equal(t, first, got, "forms should share one cache key")
	}
}

func TestCanonicalProfileURLRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "https://"} {
		_, err := CanonicalProfileURL(in)
		require.Error(t, err, "input %q", in)
	}
}
