package container

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/pkg"
)

const (
	replicaSet     = "rs0"
	rabbitUser     = "user"
	rabbitPassword = "password"
)

// Manager runs the docker dependencies of the engine and purges them when
// the test ends.
type Manager struct {
	cfg       ImageConfig
	pool      *dockertest.Pool
	resources map[string]*dockertest.Resource
}

func NewManager(t *testing.T) (*Manager, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, err
	}
	pool.MaxWait = 2 * time.Minute

	m := &Manager{
		cfg:       NewImageConfig(),
		pool:      pool,
		resources: make(map[string]*dockertest.Resource),
	}
	t.Cleanup(func() {
		if err := m.ClearResources(); err != nil {
			t.Logf("failed to purge containers: %v", err)
		}
	})
	return m, nil
}

func (m *Manager) run(name string, opts *dockertest.RunOptions) (*dockertest.Resource, error) {
	// a random suffix avoids clashing with leftovers of an aborted run
	opts.Name = pkg.UniqueName(4, "dnt-e2e", name)
	resource, err := m.pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	m.resources[name] = resource
	return resource, nil
}

// RunMongo starts a single node replica set and returns a config pointing
// at it.
func (m *Manager) RunMongo(dbName string) (*config.DbConfig, error) {
	resource, err := m.run("mongo", &dockertest.RunOptions{
		Repository: m.cfg.MongoRepository,
		Tag:        m.cfg.MongoVersion,
		Cmd:        []string{"--replSet", replicaSet, "--bind_ip_all"},
	})
	if err != nil {
		return nil, err
	}

	cfg := &config.DbConfig{
		Backend:          config.BackendMongo,
		DbName:           dbName,
		Address:          fmt.Sprintf("mongodb://localhost:%s/", resource.GetPort("27017/tcp")),
		DirectConnection: true,
	}
	if err := m.pool.Retry(func() error { return initiateReplicaSet(cfg.Address) }); err != nil {
		return nil, fmt.Errorf("mongo replica set did not come up: %w", err)
	}
	return cfg, nil
}

func initiateReplicaSet(address string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(address).SetDirect(true))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx) //nolint:errcheck

	admin := client.Database("admin")
	var status bson.M
	if err := admin.RunCommand(ctx, bson.D{{Key: "replSetGetStatus", Value: 1}}).Decode(&status); err == nil {
		if state, ok := status["myState"].(int32); ok && state == 1 {
			return nil
		}
		return fmt.Errorf("replica set member is not primary yet")
	}

	err = admin.RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: bson.M{
		"_id": replicaSet,
		"members": bson.A{
			bson.M{"_id": 0, "host": "localhost:27017"},
		},
	}}}).Err()
	if err != nil {
		return err
	}
	return fmt.Errorf("replica set initiated, waiting for primary")
}

// RunRabbitMQ starts a broker and returns a queue config with the default
// queue names.
func (m *Manager) RunRabbitMQ() (*config.QueueConfig, error) {
	resource, err := m.run("rabbitmq", &dockertest.RunOptions{
		Repository: m.cfg.RabbitMQRepository,
		Tag:        m.cfg.RabbitMQVersion,
		Env: []string{
			"RABBITMQ_DEFAULT_USER=" + rabbitUser,
			"RABBITMQ_DEFAULT_PASS=" + rabbitPassword,
		},
	})
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultQueueConfig()
	cfg.Enabled = true
	cfg.URL = fmt.Sprintf("amqp://localhost:%s/", resource.GetPort("5672/tcp"))
	cfg.User = rabbitUser
	cfg.Password = rabbitPassword
	cfg.ReconnectBackoff = time.Second

	err = m.pool.Retry(func() error {
		conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@localhost:%s/",
			rabbitUser, rabbitPassword, resource.GetPort("5672/tcp")))
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq did not come up: %w", err)
	}
	return cfg, nil
}

// ClearResources purges every container started by the manager.
func (m *Manager) ClearResources() error {
	for name, resource := range m.resources {
		if err := m.pool.Purge(resource); err != nil {
			return fmt.Errorf("failed to purge %s: %w", name, err)
		}
		delete(m.resources, name)
	}
	return nil
}
