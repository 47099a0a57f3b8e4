package instagram_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likebank/likebank/internal/instagram"
)

const postURL = "https://www.instagram.com/p/Cxyz123/"

func newTestClient(handler http.Handler) (*instagram.Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return instagram.NewClient(srv.URL, "session-token", 5*time.Second), srv
}

func TestValidateLike(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/media/Cxyz123/likers/", r.URL.Path)
		cookie, err := r.Cookie("sessionid")
		require.NoError(t, err)
		assert.Equal(t, "session-token", cookie.Value)
		w.Write([]byte(`{"users":[{"username":"Other"},{"username":"Worker_One"}]}`))
	}))
	defer srv.Close()

	res, err := client.ValidateLike(context.Background(), "worker_one", postURL)
	require.NoError(t, err)
	assert.True(t, res.OK, "case-insensitive handle match")

	res, err = client.ValidateLike(context.Background(), "absent_user", postURL)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.True(t, res.Terminal)
	assert.Equal(t, instagram.ReasonNotLiked, res.Reason)
}

func TestValidateLikeDeletedPost(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := client.ValidateLike(context.Background(), "worker", postURL)
	require.NoError(t, err)
	assert.Equal(t, instagram.Result{Terminal: true, Reason: instagram.ReasonPostDeleted}, res)
}

func TestValidateLikeTransientStatuses(t *testing.T) {
	status := http.StatusTooManyRequests
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	res, err := client.ValidateLike(context.Background(), "worker", postURL)
	require.NoError(t, err)
	assert.Equal(t, instagram.Result{Reason: instagram.ReasonRateLimited}, res)

	status = http.StatusBadGateway
	res, err = client.ValidateLike(context.Background(), "worker", postURL)
	require.NoError(t, err)
	assert.Equal(t, instagram.Result{Reason: instagram.ReasonUnavailable}, res)
}

func TestValidateLikeBadSessionIsAnError(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := client.ValidateLike(context.Background(), "worker", postURL)
	require.Error(t, err)
}

func TestValidateFollow(t *testing.T) {
	following := true
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/friendships/show/worker/brand_account/", r.URL.Path)
		if following {
			w.Write([]byte(`{"following":true}`))
		} else {
			w.Write([]byte(`{"following":false}`))
		}
	}))
	defer srv.Close()

	res, err := client.ValidateFollow(context.Background(), "worker", "https://www.instagram.com/brand_account/")
	require.NoError(t, err)
	assert.True(t, res.OK)

	following = false
	res, err = client.ValidateFollow(context.Background(), "worker", "https://www.instagram.com/brand_account/")
	require.NoError(t, err)
	assert.Equal(t, instagram.Result{Terminal: true, Reason: instagram.ReasonNotFollowed}, res)
}

const commentPage = `<html><body>
<ul class="comments">
  <li><a>@someone_else</a><span>first!</span></li>
  <li><a>@worker_one</a><span>Great Shot, love it</span></li>
</ul>
</body></html>`

func TestValidateComment(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(commentPage))
	}))
	defer srv.Close()

	// The comment page is fetched from the target URL itself.
	target := srv.URL + "/p/Cxyz123/"

	res, err := client.ValidateComment(context.Background(), "worker_one", target, "great shot")
	require.NoError(t, err)
	assert.True(t, res.OK, "substring match is case-insensitive")

	res, err = client.ValidateComment(context.Background(), "worker_one", target, "totally absent text")
	require.NoError(t, err)
	assert.Equal(t, instagram.Result{Terminal: true, Reason: instagram.ReasonCommentMissing}, res)

	res, err = client.ValidateComment(context.Background(), "never_commented", target, "great shot")
	require.NoError(t, err)
	assert.Equal(t, instagram.ReasonCommentMissing, res.Reason)
}
