package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"assettrack-api/internal/models"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the S3 client, recording put order
// and injecting per-key put failures.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putOrder []string
	failPut  map[string]error
	listErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, failPut: map[string]error{}}
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(params.Key)
	if err := f.failPut[key]; err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	f.putOrder = append(f.putOrder, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	contents := make([]s3types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, s3types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (f *fakeS3) seed(t *testing.T, key string, records []models.AssetRecord) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) group(t *testing.T, key string) []models.AssetRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil
	}
	var records []models.AssetRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func newFakeS3Repo(fake *fakeS3) *S3Repository {
	return &S3Repository{client: fake, bucket: "test-bucket", prefix: "assets/", engine: testEngine()}
}

func seededRecord() models.AssetRecord {
	return models.AssetRecord{
		ID:           "rec-1",
		Model:        "Catalyst 9300",
		SerialNumber: "FCW001",
		Site:         "LDN01",
		Status:       models.StatusNormal,
		CreatedAt:    1600000000000,
		History:      []models.HistoryEntry{},
	}
}

func TestS3UpdateOneRelocatesAcrossGroups(t *testing.T) {
	fake := newFakeS3()
	fake.seed(t, "assets/LDN01.json", []models.AssetRecord{seededRecord()})
	repo := newFakeS3Repo(fake)

	site := "FRA03"
	updated, err := repo.UpdateOne(context.Background(), "rec-1", models.AssetPatch{Site: &site})
	require.NoError(t, err)
	assert.Equal(t, "FRA03", updated.Site)

	newGroup := fake.group(t, "assets/FRA03.json")
	require.Len(t, newGroup, 1)
	assert.Equal(t, "rec-1", newGroup[0].ID)
	assert.Empty(t, fake.group(t, "assets/LDN01.json"))

	// The new group is written before the old one is rewritten.
	require.Equal(t, []string{"assets/FRA03.json", "assets/LDN01.json"}, fake.putOrder)
}

func TestS3UpdateOneRelocationFailureKeepsRecord(t *testing.T) {
	fake := newFakeS3()
	fake.seed(t, "assets/LDN01.json", []models.AssetRecord{seededRecord()})
	fake.failPut["assets/LDN01.json"] = errors.New("backend unreachable")
	repo := newFakeS3Repo(fake)

	site := "FRA03"
	_, err := repo.UpdateOne(context.Background(), "rec-1", models.AssetPatch{Site: &site})
	require.Error(t, err)

	// Failing between the two writes duplicates the record; it is never lost.
	assert.Len(t, fake.group(t, "assets/FRA03.json"), 1)
	assert.Len(t, fake.group(t, "assets/LDN01.json"), 1)
}

func TestS3UpdateOneSameGroupSingleWrite(t *testing.T) {
	fake := newFakeS3()
	fake.seed(t, "assets/LDN01.json", []models.AssetRecord{seededRecord()})
	repo := newFakeS3Repo(fake)

	comments := "rack 4"
	updated, err := repo.UpdateOne(context.Background(), "rec-1", models.AssetPatch{Comments: &comments})
	require.NoError(t, err)
	assert.Equal(t, "rack 4", updated.Comments)
	require.Equal(t, []string{"assets/LDN01.json"}, fake.putOrder)

	group := fake.group(t, "assets/LDN01.json")
	require.Len(t, group, 1)
	assert.Equal(t, "rack 4", group[0].Comments)
}

func TestS3FetchAllReadsEveryGroup(t *testing.T) {
	fake := newFakeS3()
	fake.seed(t, "assets/LDN01.json", []models.AssetRecord{seededRecord()})
	other := seededRecord()
	other.ID = "rec-2"
	other.Site = "NYC02"
	fake.seed(t, "assets/NYC02.json", []models.AssetRecord{other})
	repo := newFakeS3Repo(fake)

	all, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestS3FetchAllMissingBucketIsEmpty(t *testing.T) {
	fake := newFakeS3()
	fake.listErr = &s3types.NoSuchBucket{}
	repo := newFakeS3Repo(fake)

	all, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
