package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/TimothyStephens/magi/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *Client
	dir    string
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = NewClientWithAPI(s.api, config.MinIOConfig{Bucket: "results"}, logging.NewNopLogger())
	s.dir = s.T().TempDir()
}

func (s *ClientTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) writeFile(name, content string) string {
	p := filepath.Join(s.dir, name)
	require.NoError(s.T(), os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (s *ClientTestSuite) TestDefaults() {
	c := NewClientWithAPI(s.api, config.MinIOConfig{}, nil)
	assert.Equal(s.T(), "magi-results", c.Bucket())
	assert.Equal(s.T(), "us-east-1", c.region)
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "results").Return(true, nil)

	assert.NoError(s.T(), s.client.EnsureBucket(context.Background()))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "results").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "results", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	assert.NoError(s.T(), s.client.EnsureBucket(context.Background()))
}

func (s *ClientTestSuite) TestEnsureBucket_Error() {
	s.api.On("BucketExists", mock.Anything, "results").Return(false, fmt.Errorf("denied"))

	err := s.client.EnsureBucket(context.Background())
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeStorage))
}

func (s *ClientTestSuite) TestPublishRun() {
	results := s.writeFile("magi_results.csv", "MAGI_score,gene_id\n1,g1\n")
	genes := s.writeFile("magi_gene_results.csv", "MAGI_score\n")

	s.api.On("PutObject", mock.Anything, "results", "runs/run-1/magi_results.csv", mock.Anything, int64(24),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "text/csv" && o.UserMetadata["run-id"] == "run-1"
		})).Return(minio.UploadInfo{Size: 24, ETag: "e1"}, nil)
	s.api.On("PutObject", mock.Anything, "results", "runs/run-1/magi_gene_results.csv", mock.Anything, int64(11), mock.Anything).
		Return(minio.UploadInfo{Size: 11, ETag: "e2"}, nil)

	arts, err := s.client.PublishRun(context.Background(), "run-1", []string{results, genes})
	require.NoError(s.T(), err)
	require.Len(s.T(), arts, 2)
	assert.Equal(s.T(), "runs/run-1/magi_results.csv", arts[0].ObjectKey)
	assert.Equal(s.T(), "e2", arts[1].ETag)
	assert.Equal(s.T(), "results", arts[1].Bucket)
}

func (s *ClientTestSuite) TestPublishRun_UploadFailureStops() {
	a := s.writeFile("a.csv", "x")
	b := s.writeFile("b.csv", "y")

	s.api.On("PutObject", mock.Anything, "results", "runs/r/a.csv", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, fmt.Errorf("503"))

	arts, err := s.client.PublishRun(context.Background(), "r", []string{a, b})
	assert.Empty(s.T(), arts)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeStorage))
	s.api.AssertNumberOfCalls(s.T(), "PutObject", 1)
}

func (s *ClientTestSuite) TestPublishRun_MissingFile() {
	_, err := s.client.PublishRun(context.Background(), "r", []string{filepath.Join(s.dir, "nope.csv")})
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeIO))
}

func (s *ClientTestSuite) TestPublishRun_RequiresRunID() {
	_, err := s.client.PublishRun(context.Background(), "", nil)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func (s *ClientTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, "results", "runs/r/a.csv", mock.Anything).Return(minio.ObjectInfo{Key: "runs/r/a.csv"}, nil)
	s.api.On("StatObject", mock.Anything, "results", "runs/r/b.csv", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	ok, err := s.client.Exists(context.Background(), "r", "a.csv")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	ok, err = s.client.Exists(context.Background(), "r", "b.csv")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/gzip", contentType("x.tsv.gz"))
	assert.Equal(t, "text/tab-separated-values", contentType("x.tsv"))
	assert.Equal(t, "application/octet-stream", contentType("x.bin"))
}
