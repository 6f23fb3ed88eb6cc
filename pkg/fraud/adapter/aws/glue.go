package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// CrawlResult summarizes a finished crawl.
type CrawlResult struct {
	CrawlerName   string `json:"CrawlerName"`
	TablesCreated int32  `json:"TablesCreated"`
	TablesUpdated int32  `json:"TablesUpdated"`
	TablesDeleted int32  `json:"TablesDeleted"`
}

// GlueService runs the catalog crawler and the ETL job.
type GlueService struct {
	api               GlueAPI
	crawlPollInterval time.Duration
	jobPollInterval   time.Duration
}

// NewGlueService creates a GlueService with the given poll intervals.
func NewGlueService(api GlueAPI, crawlPollInterval, jobPollInterval time.Duration) *GlueService {
	return &GlueService{api: api, crawlPollInterval: crawlPollInterval, jobPollInterval: jobPollInterval}
}

// Crawl starts the crawler and polls its metrics until it reports neither
// "still estimating" nor remaining time. The wait has no iteration bound; ctx is the backstop.
func (s *GlueService) Crawl(ctx context.Context, crawlerName string) (*CrawlResult, error) {
	if _, err := s.api.StartCrawler(ctx, &glue.StartCrawlerInput{Name: aws.String(crawlerName)}); err != nil {
		return nil, exception.NewFlowErrorf("glue", "failed to start crawler '%s'", crawlerName, Classify(err))
	}
	logger.Debugf("Started the glue crawler '%s'.", crawlerName)

	return awaitTerminal(ctx, s.crawlPollInterval, func(ctx context.Context) (*CrawlResult, bool, error) {
		out, err := s.api.GetCrawlerMetrics(ctx, &glue.GetCrawlerMetricsInput{CrawlerNameList: []string{crawlerName}})
		if err != nil {
			return nil, false, exception.NewFlowErrorf("glue", "failed to get metrics of crawler '%s'", crawlerName, Classify(err))
		}
		if len(out.CrawlerMetricsList) == 0 {
			return nil, false, exception.NewFlowErrorf("glue", "no metrics returned for crawler '%s'", crawlerName, exception.ErrTaskFailed)
		}
		m := out.CrawlerMetricsList[0]
		if m.StillEstimating || m.TimeLeftSeconds > 0 {
			logger.Debugf("Crawler '%s' still running (estimating: %t, time left: %.0fs).", crawlerName, m.StillEstimating, m.TimeLeftSeconds)
			return nil, false, nil
		}
		logger.Infof("The crawler '%s' created %d tables, deleted %d tables, updated %d tables.",
			crawlerName, m.TablesCreated, m.TablesDeleted, m.TablesUpdated)
		return &CrawlResult{
			CrawlerName:   crawlerName,
			TablesCreated: m.TablesCreated,
			TablesUpdated: m.TablesUpdated,
			TablesDeleted: m.TablesDeleted,
		}, true, nil
	})
}

// RunJob starts the ETL job and waits for its run to finish. Any terminal
// state other than SUCCEEDED fails with exception.ErrTaskFailed.
func (s *GlueService) RunJob(ctx context.Context, jobName string, arguments map[string]string) (*model.DataProcessOutput, error) {
	started, err := s.api.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   aws.String(jobName),
		Arguments: arguments,
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("glue", "failed to start job '%s'", jobName, Classify(err))
	}
	runID := aws.ToString(started.JobRunId)
	logger.Infof("Started glue job '%s' (run %s).", jobName, runID)

	return awaitTerminal(ctx, s.jobPollInterval, func(ctx context.Context) (*model.DataProcessOutput, bool, error) {
		out, err := s.api.GetJobRun(ctx, &glue.GetJobRunInput{JobName: aws.String(jobName), RunId: aws.String(runID)})
		if err != nil {
			return nil, false, exception.NewFlowErrorf("glue", "failed to get job run %s", runID, Classify(err))
		}
		jr := out.JobRun
		if jr == nil {
			return nil, false, nil
		}
		switch jr.JobRunState {
		case gluetypes.JobRunStateSucceeded:
			result := &model.DataProcessOutput{ID: runID, JobRunState: string(jr.JobRunState)}
			if jr.CompletedOn != nil {
				result.CompletedOn = jr.CompletedOn.UnixMilli()
			} else {
				result.CompletedOn = time.Now().UnixMilli()
			}
			return result, true, nil
		case gluetypes.JobRunStateFailed, gluetypes.JobRunStateError, gluetypes.JobRunStateTimeout,
			gluetypes.JobRunStateStopped, gluetypes.JobRunStateExpired:
			return nil, false, exception.NewFlowErrorf("glue", "job run %s ended in %s: %s",
				runID, jr.JobRunState, aws.ToString(jr.ErrorMessage), exception.ErrTaskFailed)
		default:
			return nil, false, nil
		}
	})
}
