package aws

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// TaskRequest describes one Fargate task run with a container override.
type TaskRequest struct {
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	Command        []string
	Environment    map[string]string
}

// TaskResult is the outcome of a stopped task.
type TaskResult struct {
	TaskArn  string `json:"TaskArn"`
	ExitCode int32  `json:"ExitCode"`
}

// TaskService runs containerized tasks synchronously.
type TaskService struct {
	api          ECSAPI
	pollInterval time.Duration
}

// NewTaskService creates a TaskService.
func NewTaskService(api ECSAPI, pollInterval time.Duration) *TaskService {
	return &TaskService{api: api, pollInterval: pollInterval}
}

// Run starts the task and waits until it is STOPPED. A non-zero or missing
// exit code of the overridden container fails with exception.ErrTaskFailed.
func (s *TaskService) Run(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	env := make([]ecstypes.KeyValuePair, 0, len(req.Environment))
	keys := make([]string, 0, len(req.Environment))
	for k := range req.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, ecstypes.KeyValuePair{Name: aws.String(k), Value: aws.String(req.Environment[k])})
	}

	out, err := s.api.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(req.Cluster),
		TaskDefinition: aws.String(req.TaskDefinition),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        req.Subnets,
				SecurityGroups: req.SecurityGroups,
				AssignPublicIp: ecstypes.AssignPublicIpDisabled,
			},
		},
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{{
				Name:        aws.String(req.ContainerName),
				Command:     req.Command,
				Environment: env,
			}},
		},
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("ecs", "failed to run task '%s'", req.TaskDefinition, Classify(err))
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return nil, exception.NewFlowErrorf("ecs", "task '%s' could not be placed: %s", req.TaskDefinition, aws.ToString(f.Reason), exception.ErrTaskFailed)
	}
	if len(out.Tasks) == 0 {
		return nil, exception.NewFlowErrorf("ecs", "no task started for '%s'", req.TaskDefinition, exception.ErrTaskFailed)
	}
	taskArn := aws.ToString(out.Tasks[0].TaskArn)
	logger.Infof("Started task %s on cluster '%s'.", taskArn, req.Cluster)

	return awaitTerminal(ctx, s.pollInterval, func(ctx context.Context) (*TaskResult, bool, error) {
		desc, err := s.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{Cluster: aws.String(req.Cluster), Tasks: []string{taskArn}})
		if err != nil {
			return nil, false, exception.NewFlowErrorf("ecs", "failed to describe task %s", taskArn, Classify(err))
		}
		if len(desc.Tasks) == 0 {
			return nil, false, nil
		}
		task := desc.Tasks[0]
		if aws.ToString(task.LastStatus) != "STOPPED" {
			return nil, false, nil
		}
		for _, c := range task.Containers {
			if aws.ToString(c.Name) != req.ContainerName {
				continue
			}
			if c.ExitCode == nil {
				return nil, false, exception.NewFlowErrorf("ecs", "task %s stopped without exit code: %s",
					taskArn, aws.ToString(task.StoppedReason), exception.ErrTaskFailed)
			}
			if *c.ExitCode != 0 {
				return nil, false, exception.NewFlowErrorf("ecs", "task %s container '%s' exited with code %d: %s",
					taskArn, req.ContainerName, *c.ExitCode, aws.ToString(c.Reason), exception.ErrTaskFailed)
			}
			return &TaskResult{TaskArn: taskArn, ExitCode: 0}, true, nil
		}
		return nil, false, exception.NewFlowErrorf("ecs", "task %s has no container named '%s'", taskArn, req.ContainerName, exception.ErrTaskFailed)
	})
}
