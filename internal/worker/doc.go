// Package worker implements the template worker lifecycle and Redis Streams integration.
//
// The worker reads render requests from a Redis stream, picks a template
// (inline, named, CEL rules or LLM classification), renders it against the
// request data or the execution's graph state and publishes the output.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	processor := worker.NewProcessor(engine, selector, manifest, worker.NewRedisStateStore(redisClient), complete, logger)
//
//	w := worker.NewWorker(cfg, redisClient, processor, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(10 * time.Second)
//
// A request is a JSON document in the "data" field of a stream entry:
//
//	{"request_id": "r1", "execution_id": "e1", "node_id": "n1",
//	 "template_name": "welcome", "data": {"name": "Ann"}, "complete": false}
//
// Results go to RESULT_STREAM; failures go to RESULT_STREAM.errors with the
// error kind and, for template errors, the template name and position.
// Failures of the state store, template store or LLM are retried up to
// MAX_RETRIES times with a growing delay; template errors are not. Stop ends
// reading but lets the request in flight publish and acknowledge.
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
