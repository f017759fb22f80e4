package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
`

// startMosquitto launches a disposable broker and returns its URL.
func startMosquitto(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available")
	}
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	ctx := context.Background()
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("cannot start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// TestBrokerRoundTrip publishes a schedule to a real broker, reads it back as
// a consumer would and acknowledges it.
func TestBrokerRoundTrip(t *testing.T) {
	broker := startMosquitto(t)

	var cli *PahoClient
	var err error
	for i := 0; i < 10; i++ {
		cli, err = NewPahoClient(Config{Broker: broker, ClientID: "railsched-test", QoS: map[string]byte{"schedule": 1, "ack": 1}})
		if err == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cli.Disconnect()

	consumer := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("consumer"))
	if tok := consumer.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("consumer connect: %v", tok.Error())
	}
	defer consumer.Disconnect(100)

	received := make(chan SchedulePayload, 1)
	topic := ScheduleTopic(DefaultTopicPrefix, "SEC-1")
	tok := consumer.Subscribe(topic, 1, func(c paho.Client, m paho.Message) {
		var p SchedulePayload
		if err := json.Unmarshal(m.Payload(), &p); err == nil {
			received <- p
			ack, _ := json.Marshal(map[string]string{"message_id": p.MessageID})
			c.Publish(DefaultTopicPrefix+"/sections/SEC-1/ack", 1, false, ack)
		}
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	// the ack subscription of cli is set up asynchronously on connect
	time.Sleep(200 * time.Millisecond)
	id, err := cli.PublishSchedule(message("SEC-1"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case p := <-received:
		if p.MessageID != id || len(p.Entries) != 1 {
			t.Fatalf("unexpected payload %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("schedule not received")
	}
	ok, err := cli.WaitForAck(id, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("ack: %v", err)
	}
}
