package attribution_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/spectre/internal/attribution"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		in       attribution.UTM
		referrer string
		want     attribution.UTM
	}{
		{
			name:     "explicit source wins",
			in:       attribution.UTM{Source: "newsletter", Medium: "email"},
			referrer: "https://www.google.com/",
			want:     attribution.UTM{Source: "newsletter", Medium: "email"},
		},
		{
			name: "no referrer",
			want: attribution.UTM{},
		},
		{
			name:     "google organic without term",
			referrer: "https://www.google.com.tr/search?q=hidden",
			want:     attribution.UTM{Source: "google", Medium: attribution.MediumOrganic},
		},
		{
			name:     "bing organic with term",
			referrer: "https://www.bing.com/search?q=heatmap+tool",
			want:     attribution.UTM{Source: "bing", Medium: attribution.MediumOrganic, Term: "heatmap tool"},
		},
		{
			name:     "yandex keeps explicit term",
			in:       attribution.UTM{Term: "given"},
			referrer: "https://yandex.ru/search/?text=other",
			want:     attribution.UTM{Source: "yandex", Medium: attribution.MediumOrganic, Term: "given"},
		},
		{
			name:     "baidu wd key",
			referrer: "https://www.baidu.com/s?wd=analytics",
			want:     attribution.UTM{Source: "baidu", Medium: attribution.MediumOrganic, Term: "analytics"},
		},
		{
			name:     "instagram social keeps host",
			referrer: "https://l.instagram.com/?u=x",
			want:     attribution.UTM{Source: "l.instagram.com", Medium: attribution.MediumSocial},
		},
		{
			name:     "other referral",
			referrer: "https://blog.example.org/post",
			want:     attribution.UTM{Source: "blog.example.org", Medium: attribution.MediumReferral},
		},
		{
			name:     "garbage referrer",
			referrer: "::not a url",
			want:     attribution.UTM{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attribution.Resolve(tt.in, tt.referrer))
		})
	}
}
