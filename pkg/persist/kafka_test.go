package persist

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaSinkPublishesRecord(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.SessionID != "s1" || rec.FocusedSeconds != 22 {
			return errors.New("unexpected record payload")
		}
		return nil
	})

	sink := NewKafkaSink(producer, "focus-records")
	require.NoError(t, sink.Save(context.Background(), Record{SessionID: "s1", FocusedSeconds: 22}))
	require.NoError(t, sink.Close())
}

func TestKafkaSinkProducerFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSink(producer, "focus-records")
	err := sink.Save(context.Background(), Record{SessionID: "s1"})

	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}

func TestKafkaSinkClosed(t *testing.T) {
	sink := NewKafkaSink(mocks.NewSyncProducer(t, nil), "focus-records")
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	err := sink.Save(context.Background(), Record{})
	assert.ErrorIs(t, err, ErrSinkClosed)
}
