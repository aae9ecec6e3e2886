package state

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/platform/s3"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/secret"
	testutil "github.com/imamik/svmzner/internal/testing"
)

func sampleRecord() *Record {
	r := NewRecord("mantis")
	r.Stage = StageGenesisReady
	r.Image = provisioning.ImageRef{ID: 114690387, Name: "debian-12", Created: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	r.SSHKey = provisioning.SSHKeyRef{ID: 7, Name: "mantis", Fingerprint: "aa:bb"}
	r.Firewall = provisioning.NetworkRuleSetRef{ID: 9, Name: "mantis"}
	r.Volumes["ledger"] = provisioning.VolumeRef{ID: 11, Name: "mantis-ledger", Role: "ledger", SizeGiB: 512, MountPath: "/home/sol/ledger", DevicePath: "/dev/disk/by-id/scsi-0HC_Volume_11"}
	r.Instance = &provisioning.ComputeInstance{ID: 42, Name: "mantis", PublicAddress: "203.0.113.10",
		Volumes: []provisioning.AttachedVolume{{ID: 11, Role: "ledger", SizeGiB: 512}}}
	r.Keys[keys.RoleIdentity] = keys.Ref{Role: keys.RoleIdentity, ID: "mantis/keys/identity", PublicKey: keys.PublicKey{1, 2, 3}}
	r.GenesisDigest = "digest"
	r.GenesisFingerprint = "fingerprint"
	return r
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	in := sampleRecord()

	data, err := Encode(in)
	require.NoError(t, err)

	again, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be deterministic")

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Stage, out.Stage)
	assert.Equal(t, in.Image.ID, out.Image.ID)
	assert.True(t, in.Image.Created.Equal(out.Image.Created))
	assert.Equal(t, in.Volumes, out.Volumes)
	assert.Equal(t, in.Keys, out.Keys)
	assert.Equal(t, in.Instance.PublicAddress, out.Instance.PublicAddress)
	assert.Nil(t, out.Failure)
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte{0xff})
	assert.Error(t, err)
}

func TestStageRank(t *testing.T) {
	t.Parallel()
	assert.Less(t, StageInit.Rank(), StageResourcesProvisioning.Rank())
	assert.Less(t, StageKeysGenerated.Rank(), StageGenesisApplying.Rank())
	assert.Less(t, StageValidatorLaunching.Rank(), StageRunning.Rank())
	assert.Equal(t, -1, StageFailed.Rank())
}

func TestRecordClone(t *testing.T) {
	t.Parallel()
	r := sampleRecord()
	c := r.Clone()
	c.Volumes["accounts"] = provisioning.VolumeRef{ID: 1}
	c.Instance.Volumes[0].SizeGiB = 1
	c.Keys[keys.RoleVote] = keys.Ref{}

	assert.NotContains(t, r.Volumes, "accounts")
	assert.Equal(t, 512, r.Instance.Volumes[0].SizeGiB)
	assert.NotContains(t, r.Keys, keys.RoleVote)
}

// storeContract runs the behavior every backend must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "mantis")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sampleRecord()))
	got, err := store.Load(ctx, "mantis")
	require.NoError(t, err)
	assert.Equal(t, StageGenesisReady, got.Stage)

	_, found, err := store.GetBlob(ctx, "secrets/x")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutBlob(ctx, "secrets/x", []byte("cipher")))
	data, found, err := store.GetBlob(ctx, "secrets/x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("cipher"), data)

	require.NoError(t, store.DeleteBlob(ctx, "secrets/x"))
	_, found, err = store.GetBlob(ctx, "secrets/x")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete(ctx, "mantis"))
	_, err = store.Load(ctx, "mantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeContract(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	t.Parallel()
	store, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleRecord()))
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load(ctx, "mantis")
	require.NoError(t, err)
	assert.Equal(t, "fingerprint", got.GenesisFingerprint)
}

func TestS3Store(t *testing.T) {
	t.Parallel()
	server := testutil.NewS3Server(t)
	client := s3.NewFromS3(awss3.New(awss3.Options{
		Region:                     "fsn1",
		BaseEndpoint:               aws.String(server.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("k", "s", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}), "fsn1")

	store, err := OpenS3(context.Background(), client, "svmzner-state", "prod")
	require.NoError(t, err)

	storeContract(t, store)

	require.NoError(t, store.Save(context.Background(), sampleRecord()))
	assert.Contains(t, server.Keys("svmzner-state"), "prod/records/mantis.cbor")
}

func TestSealedSecretsOnBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := NewMemoryStore()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	ring := keys.NewKeyring("mantis", secret.NewSealedStore(backend, identity), nil)
	refs, _, err := ring.EnsureAll(ctx)
	require.NoError(t, err)

	rec := NewRecord("mantis")
	rec.Keys = refs
	require.NoError(t, backend.Save(ctx, rec))

	for _, role := range keys.Roles {
		kp, err := ring.Resolve(ctx, refs[role])
		require.NoError(t, err)
		priv := kp.Private.Reveal()

		assert.False(t, bytes.Contains(backend.RawRecord("mantis"), priv[:32]), "%s seed leaked into record", role)
		for _, key := range backend.BlobKeys() {
			blob, _, err := backend.GetBlob(ctx, key)
			require.NoError(t, err)
			assert.False(t, bytes.Contains(blob, priv[:32]), "%s seed stored unsealed", role)
		}
	}
}
