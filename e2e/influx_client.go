package e2e

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back what the service wrote to InfluxDB during the E2E
// suite.
type InfluxClient struct {
	url    string
	org    string
	bucket string
	token  string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a new client for the given parameters. It assumes
// the server is already running and reachable.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{
		url:    url,
		org:    org,
		bucket: bucket,
		token:  token,
		client: c,
		query:  c.QueryAPI(org),
	}
}

// Query runs a Flux query and returns the raw query.Result iterator. The
// caller is responsible for iterating and closing it.
func (c *InfluxClient) Query(ctx context.Context, flux string) (*api.QueryTableResult, error) {
	return c.query.Query(ctx, flux)
}

// SetupBucket ensures the organisation and bucket exist on the running
// InfluxDB instance. It creates them if missing using the management API.
func (c *InfluxClient) SetupBucket(ctx context.Context) error {
	orgAPI := c.client.OrganizationsAPI()
	org, err := orgAPI.FindOrganizationByName(ctx, c.org)
	if err != nil || org == nil {
		org, err = orgAPI.CreateOrganizationWithName(ctx, c.org)
		if err != nil {
			return fmt.Errorf("create org: %w", err)
		}
	}

	bucketAPI := c.client.BucketsAPI()
	buckets, err := bucketAPI.FindBucketsByOrgName(ctx, c.org)
	if err != nil {
		return err
	}
	if buckets != nil {
		for _, b := range *buckets {
			if b.Name == c.bucket {
				return nil
			}
		}
	}
	_, err = bucketAPI.CreateBucketWithName(ctx, org, c.bucket)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// CountMeasurement returns how many records of measurement were written
// within the last window.
func (c *InfluxClient) CountMeasurement(ctx context.Context, measurement string, window time.Duration) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-%s) |> filter(fn: (r) => r._measurement == %q)`,
		c.bucket, window.Round(time.Second), measurement)
	res, err := c.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
