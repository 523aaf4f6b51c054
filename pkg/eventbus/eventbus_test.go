package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/logging"
)

type args struct {
	data interface{}
}

func TestPublisher_Publish(t *testing.T) {
	type args2 struct {
		data interface{}
	}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		t.Error("should not be called")
	})
	publisher.Publish(&args2{
		data: "test",
	})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var data interface{}
	publisher.Subscribe(func(e *args) {
		called = true
		data = e.data
	})
	publisher.Publish(&args{
		data: "test",
	})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.ErrorLevel)
	publisher := NewEventPublisher(log)
	handler := func(e *args) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
	publisher.Publish(&args{data: "test"})
}

func TestPublisher_HandlerPanicIsRecovered(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.ErrorLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		panic("boom")
	})
	publisher.Publish(&args{data: "test"})
	if output := logBuffer.String(); !strings.Contains(output, "panicked") {
		t.Errorf("expected panic to be logged, got: %q", output)
	}
}
