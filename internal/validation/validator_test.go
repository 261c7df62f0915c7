package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoHolder struct {
	Repo string `validate:"required,repo_slug"`
}

func TestValidateStruct_RepoSlug(t *testing.T) {
	testCases := []struct {
		name    string
		repo    string
		wantErr bool
	}{
		{name: "valid slug", repo: "acme/payments-api", wantErr: false},
		{name: "valid with dots", repo: "acme/infra.live", wantErr: false},
		{name: "missing owner", repo: "payments-api", wantErr: true},
		{name: "extra segment", repo: "acme/payments/api", wantErr: true},
		{name: "spaces", repo: "acme/payments api", wantErr: true},
		{name: "empty falls to required", repo: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct(&repoHolder{Repo: tc.repo})

			if tc.wantErr {
				require.Error(t, err)

				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.NotEmpty(t, validationErr.Errors)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
