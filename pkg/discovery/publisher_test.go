package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/discovery"
	"github.com/foldsense/devstate-go/pkg/discovery/mocks"
)

func baseInfo() discovery.ServiceInfo {
	return discovery.ServiceInfo{
		InstanceName:  "kitchen-display",
		Port:          8650,
		Committed:     3,
		CommittedName: "STALE",
		Supported:     []int{0, 1},
	}
}

func TestPublisherStartAdvertisesAbsentState(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.MatchedBy(func(info *discovery.ServiceInfo) bool {
		return info.Committed == devicestate.InvalidIdentifier && info.CommittedName == "" &&
			info.InstanceName == "kitchen-display"
	})).Return(nil).Once()

	p := discovery.NewPublisher(adv, baseInfo(), nil, nil)
	require.NoError(t, p.Start(context.Background()))
}

func TestPublisherUpdatesOnCommit(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()

	var published *discovery.ServiceInfo
	adv.EXPECT().Update(mock.Anything).Run(func(info *discovery.ServiceInfo) {
		published = info
	}).Return(nil).Once()

	supported := func(context.Context) ([]int, error) { return []int{0, 1, 2}, nil }
	p := discovery.NewPublisher(adv, baseInfo(), supported, nil)
	require.NoError(t, p.Start(context.Background()))

	p.OnDeviceStateChanged(devicestate.New(1, "OTHER"))

	require.NotNil(t, published)
	assert.Equal(t, 1, published.Committed)
	assert.Equal(t, "OTHER", published.CommittedName)
	assert.Equal(t, []int{0, 1, 2}, published.Supported)
	assert.Equal(t, 1, p.Info().Committed)
}

func TestPublisherKeepsSupportedOnSourceError(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()
	adv.EXPECT().Update(mock.Anything).Return(errors.New("offline")).Once()

	supported := func(context.Context) ([]int, error) { return nil, errors.New("stopped") }
	p := discovery.NewPublisher(adv, baseInfo(), supported, nil)
	require.NoError(t, p.Start(context.Background()))

	p.OnDeviceStateChanged(devicestate.New(0, "DEFAULT"))
	assert.Equal(t, []int{0, 1}, p.Info().Supported)
	assert.Equal(t, 0, p.Info().Committed)
}

func TestPublisherBeforeStartOnlyRecords(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)

	p := discovery.NewPublisher(adv, baseInfo(), nil, nil)
	p.OnDeviceStateChanged(devicestate.New(1, "OTHER"))
	assert.Equal(t, 1, p.Info().Committed)

	// Stop without Start is a no-op.
	require.NoError(t, p.Stop())
}

func TestPublisherStartError(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(errors.New("no multicast")).Once()

	p := discovery.NewPublisher(adv, baseInfo(), nil, nil)
	assert.Error(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())
}

func TestPublisherStop(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()
	adv.EXPECT().Stop().Return(nil).Once()

	p := discovery.NewPublisher(adv, baseInfo(), nil, nil)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
}

func TestMDNSAdvertiserUpdateBeforeAdvertise(t *testing.T) {
	a := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	assert.ErrorIs(t, a.Update(&discovery.ServiceInfo{}), discovery.ErrNotAdvertising)
	assert.NoError(t, a.Stop())
	assert.ErrorIs(t, a.Advertise(context.Background(), &discovery.ServiceInfo{}), discovery.ErrInvalidInstanceName)
}
