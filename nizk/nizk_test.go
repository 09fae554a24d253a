package nizk_test

import (
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // only used for its short digest
	"errors"
	"fmt"
	"hash"
	"math/big"
	"sync"
	"testing"

	"github.com/drand/kyber"
	"github.com/drand/kyber/xof/blake2xb"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/drand/sigma/common/testlogger"
	"github.com/drand/sigma/crypto"
	"github.com/drand/sigma/internal/metrics"
	"github.com/drand/sigma/nizk"
	"github.com/drand/sigma/sigma"
	"github.com/drand/sigma/sigma/schnorr"
)

func newStream(seed string) cipher.Stream {
	return blake2xb.New([]byte(seed))
}

func group(t *testing.T, name string) kyber.Group {
	g, err := crypto.GroupFromName(name)
	require.NoError(t, err)
	return g
}

func session(t *testing.T, instance *schnorr.Instance, h crypto.HashFunction, ctx string) *schnorr.NIZK {
	n, err := schnorr.NewNIZK(instance, h.Func(), []byte(ctx), nizk.WithLogger(testlogger.New(t)))
	require.NoError(t, err)
	return n
}

func batchable(t *testing.T, n *schnorr.NIZK, w kyber.Scalar, msg []byte, rand cipher.Stream) *schnorr.BatchableProof {
	proof, err := nizk.Retry(nizk.DefaultAttempts, func() (*schnorr.BatchableProof, error) {
		return n.BatchableProof(w, msg, rand)
	})
	require.NoError(t, err)
	return proof
}

func short(t *testing.T, n *schnorr.NIZK, w kyber.Scalar, msg []byte, rand cipher.Stream) *schnorr.ShortProof {
	proof, err := nizk.Retry(nizk.DefaultAttempts, func() (*schnorr.ShortProof, error) {
		return n.ShortProof(w, msg, rand)
	})
	require.NoError(t, err)
	return proof
}

var messages = []struct {
	name string
	msg  []byte
}{
	{"absent", nil},
	{"empty", []byte{}},
	{"hello", []byte("hello")},
}

func TestCompleteness(t *testing.T) {
	hashes := []crypto.HashFunction{crypto.Blake2b, crypto.SHA3_256, crypto.Blake2s, crypto.SHA256}
	for _, gname := range crypto.ListGroups() {
		for _, h := range hashes {
			for _, m := range messages {
				t.Run(fmt.Sprintf("%s/%s/%s", gname, h, m.name), func(t *testing.T) {
					rand := newStream(t.Name())
					w, instance := schnorr.KeyPair(group(t, gname), rand)
					n := session(t, instance, h, "completeness")

					bp := batchable(t, n, w, m.msg, rand)
					require.NoError(t, n.BatchableVerify(bp, m.msg))

					sp := short(t, n, w, m.msg, rand)
					require.NoError(t, n.ShortVerify(sp, m.msg))
				})
			}
		}
	}
}

func TestScenarioValidProof(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	rand := newStream("scenario 1")
	w, instance := schnorr.KeyPair(g, rand)
	require.True(t, instance.Base.Equal(g.Point().Base()))

	n := session(t, instance, crypto.Blake2s, "test")
	proof := batchable(t, n, w, []byte("hello"), rand)
	require.NoError(t, n.BatchableVerify(proof, []byte("hello")))
}

func TestScenarioWrongWitness(t *testing.T) {
	for _, gname := range crypto.ListGroups() {
		t.Run(gname, func(t *testing.T) {
			g := group(t, gname)
			rand := newStream("scenario 2 " + gname)
			_, instance := schnorr.KeyPair(g, rand)
			wrong := g.Scalar().Pick(rand)
			n := session(t, instance, crypto.Blake2s, "test")

			bp := batchable(t, n, wrong, []byte("hello"), rand)
			require.ErrorIs(t, n.BatchableVerify(bp, []byte("hello")), sigma.ErrVerificationFailed)

			sp := short(t, n, wrong, []byte("hello"), rand)
			require.ErrorIs(t, n.ShortVerify(sp, []byte("hello")), sigma.ErrVerificationFailed)
		})
	}
}

func TestScenarioTamperedResponse(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	rand := newStream("scenario 3")
	w, instance := schnorr.KeyPair(g, rand)
	n := session(t, instance, crypto.Blake2s, "test")
	msg := []byte("hello")

	proof := batchable(t, n, w, msg, rand)
	buff, err := n.MarshalBatchable(proof)
	require.NoError(t, err)

	// flip the last byte of the response: the scalar stays canonical
	buff[len(buff)-1] ^= 0x01
	tampered, err := n.UnmarshalBatchable(buff)
	require.NoError(t, err)
	require.ErrorIs(t, n.BatchableVerify(tampered, msg), sigma.ErrVerificationFailed)

	// any byte of the response: decoding or verification must fail
	for i := g.PointLen(); i < len(buff); i++ {
		clean, err := n.MarshalBatchable(proof)
		require.NoError(t, err)
		clean[i] ^= 0x80
		p, err := n.UnmarshalBatchable(clean)
		if err != nil {
			require.ErrorIs(t, err, sigma.ErrSerialization)
			continue
		}
		require.Error(t, n.BatchableVerify(p, msg), "byte %d", i)
	}
}

func TestScenarioShortProof(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	rand := newStream("scenario 4")
	w, instance := schnorr.KeyPair(g, rand)
	n := session(t, instance, crypto.Blake2s, "test")
	msg := []byte("hello")

	proof := short(t, n, w, msg, rand)
	require.NoError(t, n.ShortVerify(proof, msg))

	// big endian scalars: the low byte keeps the challenge canonical
	altered := *proof
	altered.Challenge[sigma.ChallengeLength-1] ^= 0x01
	require.ErrorIs(t, n.ShortVerify(&altered, msg), sigma.ErrVerificationFailed)

	for i := 0; i < sigma.ChallengeLength; i++ {
		altered := *proof
		altered.Challenge[i] ^= 0x40
		require.Error(t, n.ShortVerify(&altered, msg), "byte %d", i)
	}
}

func TestVerifyBindsMessageAndContext(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	rand := newStream("binding")
	w, instance := schnorr.KeyPair(g, rand)
	n := session(t, instance, crypto.SHA3_256, "ctx-a")
	other := session(t, instance, crypto.SHA3_256, "ctx-b")

	bp := batchable(t, n, w, []byte("m1"), rand)
	require.NoError(t, n.BatchableVerify(bp, []byte("m1")))
	require.Error(t, n.BatchableVerify(bp, []byte("m2")))
	require.Error(t, n.BatchableVerify(bp, nil))
	require.Error(t, other.BatchableVerify(bp, []byte("m1")))

	sp := short(t, n, w, []byte("m1"), rand)
	require.NoError(t, n.ShortVerify(sp, []byte("m1")))
	require.Error(t, n.ShortVerify(sp, []byte("m2")))
	require.Error(t, other.ShortVerify(sp, []byte("m1")))
}

func TestChallengeLayout(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	rand := newStream("layout")
	w, instance := schnorr.KeyPair(g, rand)
	protocol := schnorr.New(instance)
	n := session(t, instance, crypto.Blake2b, "context")

	commitment, _ := protocol.ProverCommit(w, rand)
	com, err := commitment.MarshalBinary()
	require.NoError(t, err)

	sum := func(parts ...[]byte) []byte {
		h, err := crypto.Blake2b.New()
		require.NoError(t, err)
		for _, p := range parts {
			_, _ = h.Write(p)
		}
		return h.Sum(nil)[:32]
	}
	hd := sum([]byte(sigma.DomainSeparator))
	hctx := sum([]byte("context"))
	ha := protocol.Label()

	got, err := n.Challenge(nil, commitment)
	require.NoError(t, err)
	require.Equal(t, sum(hd, hctx, ha[:], com), got[:])

	got, err = n.Challenge([]byte("message"), commitment)
	require.NoError(t, err)
	require.Equal(t, sum(hd, hctx, ha[:], sum([]byte("message")), com), got[:])
}

func TestChallengeDeterminism(t *testing.T) {
	g := group(t, crypto.BLS12381G2ID)
	rand := newStream("determinism")
	w, instance := schnorr.KeyPair(g, rand)
	a := session(t, instance, crypto.Blake2s, "ctx")
	b := session(t, instance, crypto.Blake2s, "ctx")

	commitment, _ := schnorr.New(instance).ProverCommit(w, rand)
	for _, m := range messages {
		ca, err := a.Challenge(m.msg, commitment)
		require.NoError(t, err)
		again, err := a.Challenge(m.msg, commitment)
		require.NoError(t, err)
		cb, err := b.Challenge(m.msg, commitment)
		require.NoError(t, err)
		require.Equal(t, ca, again)
		require.Equal(t, ca, cb)
	}
}

func TestChallengeDomainSeparation(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	rand := newStream("separation")
	w, instance := schnorr.KeyPair(g, rand)
	protocol := schnorr.New(instance)

	base := session(t, instance, crypto.Blake2s, "ctx")
	otherCtx := session(t, instance, crypto.Blake2s, "ctx2")
	otherHash := session(t, instance, crypto.SHA256, "ctx")
	otherLabel, err := schnorr.WrapNIZK(schnorr.New(instance, schnorr.WithLabel(sigma.Label{})), crypto.Blake2s.Func(), []byte("ctx"))
	require.NoError(t, err)

	for i := 0; i < 32; i++ {
		commitment, _ := protocol.ProverCommit(w, rand)
		seen := make(map[sigma.Challenge]string)
		add := func(name string, c sigma.Challenge, err error) {
			require.NoError(t, err)
			prev, dup := seen[c]
			require.False(t, dup, "%s collides with %s", name, prev)
			seen[c] = name
		}

		c, err := base.Challenge([]byte("msg"), commitment)
		add("base", c, err)
		c, err = base.Challenge([]byte("msg2"), commitment)
		add("message", c, err)
		c, err = base.Challenge(nil, commitment)
		add("absent message", c, err)
		c, err = base.Challenge([]byte{}, commitment)
		add("empty message", c, err)
		c, err = otherCtx.Challenge([]byte("msg"), commitment)
		add("context", c, err)
		c, err = otherHash.Challenge([]byte("msg"), commitment)
		add("hash", c, err)
		c, err = otherLabel.Challenge([]byte("msg"), commitment)
		add("label", c, err)
	}
}

func TestChallengeConversionPropagates(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	rand := newStream("conversion")
	w, instance := schnorr.KeyPair(g, rand)
	n := session(t, instance, crypto.Blake2s, "ctx")
	before := testutil.ToFloat64(metrics.ChallengeConversionFailures)

	var failures int
	for i := 0; i < 64; i++ {
		_, err := n.BatchableProof(w, nil, rand)
		if err == nil {
			continue
		}
		failures++
		require.True(t, sigma.IsRetryable(err))
		require.ErrorIs(t, err, sigma.ErrChallengeConversion)
		require.NotErrorIs(t, err, sigma.ErrVerificationFailed)

		_, err = n.ShortProof(w, nil, rand)
		if err != nil {
			require.True(t, sigma.IsRetryable(err))
		}
	}
	require.NotZero(t, failures)
	require.GreaterOrEqual(t, testutil.ToFloat64(metrics.ChallengeConversionFailures)-before, float64(failures))
}

func TestNewRejectsBadHash(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	_, instance := schnorr.KeyPair(g, newStream("hash"))

	_, err := schnorr.NewNIZK(instance, func() hash.Hash { return sha1.New() }, nil)
	require.Error(t, err)
	_, err = schnorr.NewNIZK(instance, nil, nil)
	require.Error(t, err)
	_, err = schnorr.WrapNIZK(nil, crypto.Blake2s.Func(), nil)
	require.Error(t, err)
}

func TestProofEncoding(t *testing.T) {
	for _, gname := range crypto.ListGroups() {
		t.Run(gname, func(t *testing.T) {
			g := group(t, gname)
			rand := newStream("encoding " + gname)
			w, instance := schnorr.KeyPair(g, rand)
			n := session(t, instance, crypto.Blake2s, "encoding")

			bp := batchable(t, n, w, nil, rand)
			buff, err := n.MarshalBatchable(bp)
			require.NoError(t, err)
			require.Len(t, buff, g.PointLen()+g.ScalarLen())
			require.Equal(t, n.BatchableLen(), len(buff))
			decoded, err := n.UnmarshalBatchable(buff)
			require.NoError(t, err)
			require.NoError(t, n.BatchableVerify(decoded, nil))

			_, err = n.UnmarshalBatchable(buff[:len(buff)-1])
			require.ErrorIs(t, err, sigma.ErrSerialization)
			_, err = n.UnmarshalBatchable(append(buff, 0))
			require.ErrorIs(t, err, sigma.ErrSerialization)

			sp := short(t, n, w, nil, rand)
			buff, err = n.MarshalShort(sp)
			require.NoError(t, err)
			require.Len(t, buff, sigma.ChallengeLength+g.ScalarLen())
			require.Equal(t, sp.Challenge[:], buff[:sigma.ChallengeLength])
			decodedShort, err := n.UnmarshalShort(buff)
			require.NoError(t, err)
			require.NoError(t, n.ShortVerify(decodedShort, nil))

			_, err = n.UnmarshalShort(buff[:10])
			require.ErrorIs(t, err, sigma.ErrSerialization)
		})
	}
}

// ed25519Order is the order of the ed25519 prime subgroup.
var ed25519Order, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

// plusOrder adds the ed25519 order to the little endian scalar in buff.
func plusOrder(buff []byte) []byte {
	be := make([]byte, len(buff))
	for i := range buff {
		be[len(buff)-1-i] = buff[i]
	}
	v := new(big.Int).SetBytes(be)
	v.Add(v, ed25519Order)
	sum := v.FillBytes(make([]byte, len(buff)))
	out := make([]byte, len(buff))
	for i := range sum {
		out[len(sum)-1-i] = sum[i]
	}
	return out
}

func TestProofEncodingNonCanonical(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	rand := newStream("non canonical")
	w, instance := schnorr.KeyPair(g, rand)
	n := session(t, instance, crypto.Blake2s, "encoding")

	bp := batchable(t, n, w, nil, rand)
	buff, err := n.MarshalBatchable(bp)
	require.NoError(t, err)
	split := g.PointLen()
	tampered := append(append([]byte{}, buff[:split]...), plusOrder(buff[split:])...)
	require.NotEqual(t, buff, tampered)
	_, err = n.UnmarshalBatchable(tampered)
	require.ErrorIs(t, err, sigma.ErrSerialization)

	sp := short(t, n, w, nil, rand)
	buff, err = n.MarshalShort(sp)
	require.NoError(t, err)
	split = sigma.ChallengeLength
	tampered = append(append([]byte{}, buff[:split]...), plusOrder(buff[split:])...)
	_, err = n.UnmarshalShort(tampered)
	require.ErrorIs(t, err, sigma.ErrSerialization)

	// the canonical encodings still decode and verify
	decoded, err := n.UnmarshalShort(buff)
	require.NoError(t, err)
	require.NoError(t, n.ShortVerify(decoded, nil))
}

func TestSessionConcurrentUse(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	w, instance := schnorr.KeyPair(g, newStream("concurrent"))
	n := session(t, instance, crypto.Blake2s, "concurrent")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rand := newStream(fmt.Sprintf("worker %d", i))
			msg := []byte(fmt.Sprintf("message %d", i))
			proof, err := nizk.Retry(nizk.DefaultAttempts, func() (*schnorr.BatchableProof, error) {
				return n.BatchableProof(w, msg, rand)
			})
			if err != nil {
				errs <- err
				return
			}
			errs <- n.BatchableVerify(proof, msg)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	g := group(t, crypto.BLS12381G1ID)
	rand := newStream("metrics")
	w, instance := schnorr.KeyPair(g, rand)
	clock := clockwork.NewFakeClock()
	n, err := schnorr.NewNIZK(instance, crypto.Blake2s.Func(), nil,
		nizk.WithLogger(testlogger.New(t)), nizk.WithClock(clock))
	require.NoError(t, err)

	generated := testutil.ToFloat64(metrics.ProofsGenerated.WithLabelValues(nizk.KindShort))
	valid := testutil.ToFloat64(metrics.ProofsVerified.WithLabelValues(nizk.KindShort, metrics.ResultValid))
	invalid := testutil.ToFloat64(metrics.ProofsVerified.WithLabelValues(nizk.KindShort, metrics.ResultInvalid))

	proof := short(t, n, w, nil, rand)
	require.NoError(t, n.ShortVerify(proof, nil))
	require.Error(t, n.ShortVerify(proof, []byte("other")))

	require.Equal(t, generated+1, testutil.ToFloat64(metrics.ProofsGenerated.WithLabelValues(nizk.KindShort)))
	require.Equal(t, valid+1, testutil.ToFloat64(metrics.ProofsVerified.WithLabelValues(nizk.KindShort, metrics.ResultValid)))
	require.Equal(t, invalid+1, testutil.ToFloat64(metrics.ProofsVerified.WithLabelValues(nizk.KindShort, metrics.ResultInvalid)))
}

func TestRetry(t *testing.T) {
	calls := 0
	_, err := nizk.Retry(3, func() (int, error) {
		calls++
		return 0, fmt.Errorf("attempt: %w", sigma.ErrChallengeConversion)
	})
	require.Equal(t, 3, calls)
	require.ErrorIs(t, err, nizk.ErrAttemptsExhausted)
	require.True(t, sigma.IsRetryable(err))

	calls = 0
	boom := errors.New("boom")
	_, err = nizk.Retry(3, func() (int, error) {
		calls++
		return 0, boom
	})
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, boom)

	calls = 0
	v, err := nizk.Retry(5, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, sigma.ErrChallengeConversion
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	_, err = nizk.Retry(0, func() (int, error) { return 1, nil })
	require.Error(t, err)
}

func TestNilProof(t *testing.T) {
	g := group(t, crypto.Ed25519ID)
	_, instance := schnorr.KeyPair(g, newStream("nil"))
	n := session(t, instance, crypto.Blake2s, "nil")
	require.Error(t, n.BatchableVerify(nil, nil))
	require.Error(t, n.ShortVerify(nil, nil))
	_, err := n.MarshalBatchable(nil)
	require.Error(t, err)
	_, err = n.MarshalShort(nil)
	require.Error(t, err)
}
