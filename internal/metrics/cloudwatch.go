package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"exgateway/config"
	"exgateway/logger"
)

// Metric names published to CloudWatch.
const (
	MetricCallLatency   = "gateway_call_latency_ms"
	MetricCallErrors    = "gateway_call_errors"
	MetricRateLimitWait = "rate_limit_wait_ms"
	MetricHealth        = "exchange_health"
)

// PutMetricData accepts at most this many datums per request.
const maxBatch = 1000

// PublishFunc sends one batch of datums.
type PublishFunc func(ctx context.Context, namespace string, data []cwtypes.MetricDatum) error

type cloudWatchState struct {
	publish   PublishFunc
	namespace string
	region    string
}

// CloudWatch buffers gateway measurements and flushes them with
// PutMetricData on an interval. Without a client it only logs.
type CloudWatch struct {
	log      *logger.Entry
	state    atomic.Pointer[cloudWatchState]
	interval time.Duration
	now      func() time.Time

	data    chan cwtypes.MetricDatum
	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewCloudWatch builds a publisher from configuration. When CloudWatch is
// disabled or the AWS configuration cannot be loaded the publisher stays in
// log-only mode.
func NewCloudWatch(ctx context.Context, cfg config.CloudWatchConfig) *CloudWatch {
	p := newCloudWatch(cfg, nil)
	if !cfg.Enabled {
		return p
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		p.log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return p
	}

	client := cloudwatch.NewFromConfig(awsCfg)
	region := awsCfg.Region
	if region == "" {
		region = cfg.Region
	}
	p.state.Store(&cloudWatchState{
		publish:   clientPublisher(client),
		namespace: cfg.Namespace,
		region:    region,
	})
	p.log.WithFields(logger.Fields{
		"region":    region,
		"namespace": cfg.Namespace,
	}).Info("initialized CloudWatch client")
	return p
}

func newCloudWatch(cfg config.CloudWatchConfig, publish PublishFunc) *CloudWatch {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	p := &CloudWatch{
		log:      logger.GetLogger().WithComponent("cloudwatch"),
		interval: interval,
		now:      time.Now,
		data:     make(chan cwtypes.MetricDatum, buffer),
		stop:     make(chan struct{}),
	}
	if publish != nil {
		p.state.Store(&cloudWatchState{publish: publish, namespace: cfg.Namespace})
	}
	return p
}

func clientPublisher(client *cloudwatch.Client) PublishFunc {
	return func(ctx context.Context, namespace string, data []cwtypes.MetricDatum) error {
		_, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(namespace),
			MetricData: data,
		})
		return err
	}
}

// Enabled reports whether datums are shipped to CloudWatch.
func (p *CloudWatch) Enabled() bool {
	return p.state.Load() != nil
}

// Dropped counts datums discarded because the buffer was full.
func (p *CloudWatch) Dropped() int64 {
	return p.dropped.Load()
}

// Start launches the flush loop. It is a no-op in log-only mode.
func (p *CloudWatch) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run(ctx)
	})
}

// Stop flushes what is buffered and waits for the loop to exit.
func (p *CloudWatch) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *CloudWatch) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	batch := make([]cwtypes.MetricDatum, 0, maxBatch)
	for {
		select {
		case d := <-p.data:
			batch = append(batch, d)
			if len(batch) >= maxBatch {
				batch = p.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = p.flush(ctx, batch)
		case <-p.stop:
			p.drain(context.WithoutCancel(ctx), batch)
			return
		case <-ctx.Done():
			p.drain(context.WithoutCancel(ctx), batch)
			return
		}
	}
}

func (p *CloudWatch) drain(ctx context.Context, batch []cwtypes.MetricDatum) {
	for {
		select {
		case d := <-p.data:
			batch = append(batch, d)
			if len(batch) >= maxBatch {
				batch = p.flush(ctx, batch)
			}
		default:
			p.flush(ctx, batch)
			return
		}
	}
}

func (p *CloudWatch) flush(ctx context.Context, batch []cwtypes.MetricDatum) []cwtypes.MetricDatum {
	if len(batch) == 0 {
		return batch
	}
	state := p.state.Load()
	if state == nil {
		return batch[:0]
	}

	if err := state.publish(ctx, state.namespace, batch); err != nil {
		p.log.WithError(err).WithFields(logger.Fields{"datums": len(batch)}).Warn("failed to publish CloudWatch metrics")
		return batch[:0]
	}

	names := make(map[string]struct{}, 4)
	for _, d := range batch {
		if d.MetricName != nil {
			names[*d.MetricName] = struct{}{}
		}
	}
	list := make([]string, 0, len(names))
	for n := range names {
		list = append(list, n)
	}
	p.log.WithFields(logger.Fields{
		"metrics": strings.Join(list, ","),
		"datums":  len(batch),
	}).Debug("published metrics to CloudWatch")
	return batch[:0]
}

// RecordCall records latency for every call and a count for failed ones.
func (p *CloudWatch) RecordCall(exchange, operation string, latency time.Duration, errorKind string) {
	dims := dimensions("exchange", exchange, "operation", operation)
	p.emit(MetricCallLatency, float64(latency)/float64(time.Millisecond), cwtypes.StandardUnitMilliseconds, dims)
	if errorKind != "" {
		p.emit(MetricCallErrors, 1, cwtypes.StandardUnitCount,
			dimensions("exchange", exchange, "operation", operation, "error_kind", errorKind))
	}
}

func (p *CloudWatch) RecordRateLimitWait(exchange, operation string, wait time.Duration) {
	p.emit(MetricRateLimitWait, float64(wait)/float64(time.Millisecond), cwtypes.StandardUnitMilliseconds,
		dimensions("exchange", exchange, "operation", operation))
}

func (p *CloudWatch) RecordHealth(exchange string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	p.emit(MetricHealth, v, cwtypes.StandardUnitNone, dimensions("exchange", exchange))
}

func (p *CloudWatch) emit(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) {
	if !p.Enabled() {
		fields := logger.Fields{"metric": name, "value": value}
		for _, d := range dims {
			fields[aws.ToString(d.Name)] = aws.ToString(d.Value)
		}
		p.log.WithFields(fields).Debug("metric")
		return
	}

	datum := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(value),
		Timestamp:  aws.Time(p.now()),
	}
	select {
	case p.data <- datum:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.log.WithFields(logger.Fields{"metric": name, "dropped": n}).Warn("metric buffer full; dropping datum")
		}
	}
}

func dimensions(kv ...string) []cwtypes.Dimension {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("metrics: odd dimension list %v", kv))
	}
	dims := make([]cwtypes.Dimension, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return dims
}
