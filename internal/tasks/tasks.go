package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg" // For encoding JPEG
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/email"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery      = "email:deliver"
	TypeImageProcess       = "image:process"
	TypeSubscriptionExpire = "subscription:expire"
)

// Image targets: where the processed image key gets attached.
const (
	ImageTargetListing = "listing"
	ImageTargetAvatar  = "avatar"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// EmailTaskPayload is the payload of an email:deliver task.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ImageTaskPayload is the payload of an image:process task.
type ImageTaskPayload struct {
	S3Key    string `json:"s3_key"`
	Target   string `json:"target"`    // listing or avatar
	TargetID string `json:"target_id"` // listing id or user id
}

// Enqueuer wraps the asynq client behind the services' enqueue interfaces.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueEmail schedules an email for background delivery.
func (e *Enqueuer) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}
	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue email task: %w", err)
	}
	return nil
}

// EnqueueImageProcess schedules normalization of an uploaded image.
func (e *Enqueuer) EnqueueImageProcess(ctx context.Context, s3Key, target, targetID string) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, Target: target, TargetID: targetID})
	if err != nil {
		return fmt.Errorf("failed to marshal image payload: %w", err)
	}
	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, payload), asynq.Queue("images"))
	if err != nil {
		return fmt.Errorf("failed to enqueue image task: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	listingService  services.IListingService
	userService     services.IUserService
	subscriptionSvc services.ISubscriptionService
	s3Client        *s3.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	listingService services.IListingService,
	userService services.IUserService,
	subscriptionSvc services.ISubscriptionService,
	s3Client *s3.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		listingService:  listingService,
		userService:     userService,
		subscriptionSvc: subscriptionSvc,
		s3Client:        s3Client,
	}
}

// SetupServer configures an Asynq server instance and its mux. The caller
// runs it (srv.Run(mux)) and owns shutdown. Returns nil when neither worker
// role is requested.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5, // Separate queue for images
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeSubscriptionExpire, processor.HandleSubscriptionExpireTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// SetupScheduler configures the periodic task schedule: the subscription
// expiry sweep every hour. The caller runs it (scheduler.Run()) and owns
// shutdown.
func SetupScheduler(rdb *redis.Client) *asynq.Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: rdb.Options().Addr},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	if _, err := scheduler.Register("@every 1h", asynq.NewTask(TypeSubscriptionExpire, nil)); err != nil {
		log.Fatalf("Could not register subscription expiry schedule: %v", err)
	}

	return scheduler
}

// --- Task Handlers ---

// HandleEmailDeliveryTask processes email delivery tasks.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", payload.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, []byte(sb.String())); err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Subject=%s", payload.To, payload.Subject)
	return nil
}

// HandleImageProcessTask normalizes an uploaded image: size/dimension checks,
// resize, re-upload, then attaches the key to its listing or profile.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	targetID, err := utils.ParseSixID(payload.TargetID)
	if err != nil {
		log.Printf("Invalid TargetID in image task payload: %s", payload.TargetID)
		return fmt.Errorf("invalid target ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, Target=%s/%s", payload.S3Key, payload.Target, payload.TargetID)

	// 1. Download image from S3
	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	// 2. Check dimensions
	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageKey := payload.S3Key
	var processedImageData []byte
	contentType := aws.ToString(getObjectOutput.ContentType)

	// 3. Resize if needed
	if needsResize {
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}
	} else {
		processedImageData = imgData
	}

	// 4. Upload processed image (overwrite original)
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(processedImageKey),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	// 5. Attach the key to its target
	switch payload.Target {
	case ImageTargetListing:
		if err := p.listingService.AddImageToListing(ctx, targetID, processedImageKey); err != nil {
			return fmt.Errorf("failed to update listing with processed image: %w", err)
		}
	case ImageTargetAvatar:
		avatarURL := processedImageKey
		if p.cfg.ImageBaseS3URL != "" {
			avatarURL = strings.TrimRight(p.cfg.ImageBaseS3URL, "/") + "/" + processedImageKey
		}
		if _, err := p.userService.UpdateProfile(ctx, targetID, services.ProfileUpdate{AvatarURL: &avatarURL}); err != nil {
			return fmt.Errorf("failed to update profile avatar: %w", err)
		}
	default:
		return fmt.Errorf("unknown image target %q: %w", payload.Target, asynq.SkipRetry)
	}

	log.Printf("Image task processed successfully: Key=%s, Target=%s/%s", processedImageKey, payload.Target, payload.TargetID)
	return nil
}

// HandleSubscriptionExpireTask demotes lapsed premium subscriptions.
func (p *TaskProcessor) HandleSubscriptionExpireTask(ctx context.Context, t *asynq.Task) error {
	expired, err := p.subscriptionSvc.ExpireLapsed(ctx)
	if err != nil {
		log.Printf("Subscription expiry sweep failed: %v", err)
		return err
	}
	log.Printf("Subscription expiry sweep finished: %d subscriptions expired.", expired)
	return nil
}
